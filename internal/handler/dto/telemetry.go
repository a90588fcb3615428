// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "time"

// TrackEventRequest is the body of POST /api/v1/events.
type TrackEventRequest struct {
	UserID        string            `json:"user_id,omitempty"`
	IntegrationID string            `json:"integration_id,omitempty"`
	Provider      string            `json:"provider"`
	Action        string            `json:"action"`
	Status        string            `json:"status"`
	DurationMS    int64             `json:"duration_ms,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	OccurredAt    *time.Time        `json:"occurred_at,omitempty"`
	Metadata      *TrackMetadata    `json:"metadata,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// TrackMetadata carries the typed optional event fields.
type TrackMetadata struct {
	ItemsProcessed    int64 `json:"items_processed,omitempty"`
	RetryAfterSeconds int64 `json:"retry_after_seconds,omitempty"`
}

// EventAcceptedResponse acknowledges an accepted ingest request.
type EventAcceptedResponse struct {
	Status string `json:"status"` // always "accepted"
}

// CleanupResponse reports one retention sweep.
type CleanupResponse struct {
	Deleted int64     `json:"deleted"`
	Batches int       `json:"batches"`
	Cutoff  time.Time `json:"cutoff"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
