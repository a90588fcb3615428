package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aurelius/pulse/internal/handler/dto"
	"github.com/aurelius/pulse/internal/model"
)

// EventTracker accepts events for asynchronous recording.
type EventTracker interface {
	Track(event *model.IntegrationEvent)
}

// EventsHandler handles telemetry ingest requests.
type EventsHandler struct {
	tracker     EventTracker
	logger      *slog.Logger
	maxBodySize int64
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(tracker EventTracker, logger *slog.Logger, maxBodySize int64) *EventsHandler {
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}
	return &EventsHandler{
		tracker:     tracker,
		logger:      logger.With("component", "handler.events"),
		maxBodySize: maxBodySize,
	}
}

// TrackEvent handles POST /api/v1/events. The event is validated, then
// handed to the tracker; recording happens asynchronously, so a 202 only
// means "accepted", not "stored".
func (h *EventsHandler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req dto.TrackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON")
		return
	}

	meta := model.EventMetadata{Extra: req.Extra}
	if req.Metadata != nil {
		meta.ItemsProcessed = req.Metadata.ItemsProcessed
		meta.RetryAfterSeconds = req.Metadata.RetryAfterSeconds
	}

	event, err := model.NewEvent(
		req.UserID,
		req.IntegrationID,
		req.Provider,
		req.Action,
		model.EventStatus(req.Status),
		req.DurationMS,
		req.ErrorMessage,
		meta,
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_EVENT", err.Error())
		return
	}

	// Callers reporting after the fact may carry their own timestamp.
	if req.OccurredAt != nil {
		event.OccurredAt = req.OccurredAt.UTC()
	}

	h.tracker.Track(event)
	writeJSON(w, http.StatusAccepted, dto.EventAcceptedResponse{Status: "accepted"})
}
