package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aurelius/pulse/internal/handler/dto"
	"github.com/aurelius/pulse/internal/sweeper"
)

// RetentionSweeper runs one retention sweep over the durable log.
type RetentionSweeper interface {
	SweepOnce(ctx context.Context) (sweeper.Result, error)
}

// AdminHandler serves maintenance endpoints.
type AdminHandler struct {
	sweeper RetentionSweeper
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(s RetentionSweeper, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		sweeper: s,
		logger:  logger.With("component", "handler.admin"),
	}
}

// Cleanup handles POST /admin/cleanup. It runs a full retention sweep
// synchronously and reports what was deleted. Safe to call repeatedly.
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.SweepOnce(r.Context())
	if err != nil {
		h.logger.Error("cleanup sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, "SWEEP_FAILED", "Retention sweep failed")
		return
	}

	writeJSON(w, http.StatusOK, dto.CleanupResponse{
		Deleted: result.Deleted,
		Batches: result.Batches,
		Cutoff:  result.Cutoff.UTC(),
	})
}
