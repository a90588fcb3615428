package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aurelius/pulse/internal/aggregator"
	"github.com/aurelius/pulse/internal/model"
)

// MetricsProvider computes derived metric views on demand.
type MetricsProvider interface {
	GetProviderMetrics(ctx context.Context, provider string, timeRange model.TimeRange) (*model.ProviderMetrics, error)
	GetProviderDailySeries(ctx context.Context, provider string, days int) ([]model.AggregateCounter, error)
	GetUserIntegrationMetrics(ctx context.Context, userID, integrationID string) (*model.UserIntegrationMetrics, error)
	GetSystemMetrics(ctx context.Context) (*model.SystemMetrics, error)
	GetTopErrors(ctx context.Context, provider string, limit int) ([]model.TopError, error)
}

// MetricsHandler serves the derived metrics query surface.
type MetricsHandler struct {
	aggregator MetricsProvider
	logger     *slog.Logger
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(agg MetricsProvider, logger *slog.Logger) *MetricsHandler {
	return &MetricsHandler{
		aggregator: agg,
		logger:     logger.With("component", "handler.metrics"),
	}
}

// GetProviderMetrics handles GET /api/v1/providers/{provider}/metrics.
func (h *MetricsHandler) GetProviderMetrics(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if provider == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Provider is required")
		return
	}

	timeRange, err := model.ParseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_RANGE", "Range must be one of 1h, 24h, 7d, 30d")
		return
	}

	view, err := h.aggregator.GetProviderMetrics(r.Context(), provider, timeRange)
	if err != nil {
		h.logger.Error("failed to build provider metrics", "provider", provider, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch metrics")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetProviderDailySeries handles GET /api/v1/providers/{provider}/daily.
func (h *MetricsHandler) GetProviderDailySeries(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if provider == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Provider is required")
		return
	}

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 31 {
			writeError(w, http.StatusBadRequest, "INVALID_DAYS", "Days must be an integer between 1 and 31")
			return
		}
		days = parsed
	}

	series, err := h.aggregator.GetProviderDailySeries(r.Context(), provider, days)
	if err != nil {
		h.logger.Error("failed to build daily series", "provider", provider, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch metrics")
		return
	}

	writeJSON(w, http.StatusOK, series)
}

// GetUserIntegrationMetrics handles
// GET /api/v1/users/{userID}/integrations/{integrationID}/metrics.
func (h *MetricsHandler) GetUserIntegrationMetrics(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	integrationID := chi.URLParam(r, "integrationID")
	if userID == "" || integrationID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "User ID and integration ID are required")
		return
	}

	view, err := h.aggregator.GetUserIntegrationMetrics(r.Context(), userID, integrationID)
	if err != nil {
		if errors.Is(err, aggregator.ErrIntegrationNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Integration not found")
			return
		}
		h.logger.Error("failed to build user metrics",
			"user_id", userID,
			"integration_id", integrationID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch metrics")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetSystemMetrics handles GET /api/v1/system/metrics.
func (h *MetricsHandler) GetSystemMetrics(w http.ResponseWriter, r *http.Request) {
	view, err := h.aggregator.GetSystemMetrics(r.Context())
	if err != nil {
		h.logger.Error("failed to build system metrics", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch metrics")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetTopErrors handles GET /api/v1/errors/top.
func (h *MetricsHandler) GetTopErrors(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "Limit must be an integer between 1 and 100")
			return
		}
		limit = parsed
	}

	topErrors, err := h.aggregator.GetTopErrors(r.Context(), provider, limit)
	if err != nil {
		h.logger.Error("failed to fetch top errors", "provider", provider, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch errors")
		return
	}

	writeJSON(w, http.StatusOK, topErrors)
}
