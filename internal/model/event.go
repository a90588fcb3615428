// Package model defines domain entities for the telemetry engine.
package model

import (
	"errors"
	"strings"
	"time"
)

// EventStatus is the outcome of one unit of integration work.
type EventStatus string

// Valid event statuses.
const (
	StatusSuccess     EventStatus = "success"
	StatusError       EventStatus = "error"
	StatusRateLimited EventStatus = "rate_limited"
)

// IsValid reports whether the status is one of the three known outcomes.
func (s EventStatus) IsValid() bool {
	switch s {
	case StatusSuccess, StatusError, StatusRateLimited:
		return true
	}
	return false
}

// Action prefixes fixed by the convenience constructors. Consumers filter
// event categories by string prefix instead of a separate taxonomy field.
const (
	ActionPrefixAPI       = "api."
	ActionPrefixSync      = "sync."
	ActionPrefixWebhook   = "webhook."
	ActionPrefixRateLimit = "rate_limit."
)

// Validation errors returned by NewEvent.
var (
	ErrMissingProvider  = errors.New("event provider is required")
	ErrMissingAction    = errors.New("event action is required")
	ErrInvalidStatus    = errors.New("event status must be success, error or rate_limited")
	ErrNegativeDuration = errors.New("event duration must be non-negative")
)

// EventMetadata is a closed set of typed optional fields plus an opaque
// string map for provider-specific extras.
type EventMetadata struct {
	ItemsProcessed    int64             `json:"items_processed,omitempty"`
	RetryAfterSeconds int64             `json:"retry_after_seconds,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// IntegrationEvent is one observation of integration work: an API call, a
// sync pass, a webhook delivery, or a rate-limit encounter. Events are
// immutable once constructed; both tiers consume the event and discard it.
type IntegrationEvent struct {
	ID      string `json:"id"`       // ULID, assigned at durable insert
	EventID string `json:"event_id"` // Idempotency key (ingest stream ID)

	UserID        string `json:"user_id,omitempty"`
	IntegrationID string `json:"integration_id,omitempty"`
	Provider      string `json:"provider"`
	Action        string `json:"action"` // e.g. api.get_issue, sync.tasks

	Status       EventStatus   `json:"status"`
	DurationMS   int64         `json:"duration_ms,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Metadata     EventMetadata `json:"metadata,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"` // DB insertion time
}

// NewEvent constructs and validates an IntegrationEvent, stamping OccurredAt
// with the current time. It has no side effects.
func NewEvent(userID, integrationID, provider, action string, status EventStatus, durationMS int64, errorMessage string, metadata EventMetadata) (*IntegrationEvent, error) {
	ev := &IntegrationEvent{
		UserID:        userID,
		IntegrationID: integrationID,
		Provider:      provider,
		Action:        action,
		Status:        status,
		DurationMS:    durationMS,
		ErrorMessage:  errorMessage,
		Metadata:      metadata,
		OccurredAt:    time.Now().UTC(),
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// Validate rejects malformed events before either tier sees them.
func (e *IntegrationEvent) Validate() error {
	if e.Provider == "" {
		return ErrMissingProvider
	}
	if e.Action == "" {
		return ErrMissingAction
	}
	if !e.Status.IsValid() {
		return ErrInvalidStatus
	}
	if e.DurationMS < 0 {
		return ErrNegativeDuration
	}
	return nil
}

// NewAPICallEvent builds an event for one outbound API call.
func NewAPICallEvent(userID, integrationID, provider, endpoint string, durationMS int64, success bool, errorMessage string) (*IntegrationEvent, error) {
	return NewEvent(userID, integrationID, provider, ActionPrefixAPI+endpoint,
		statusFor(success), durationMS, errorMessage, EventMetadata{})
}

// NewSyncEvent builds an event for one sync pass. Individual item errors are
// folded into a single message; the full list travels in metadata extras.
func NewSyncEvent(userID, integrationID, provider, syncType string, durationMS, itemsProcessed int64, success bool, syncErrors []string) (*IntegrationEvent, error) {
	meta := EventMetadata{ItemsProcessed: itemsProcessed}
	errorMessage := ""
	if !success && len(syncErrors) > 0 {
		errorMessage = syncErrors[0]
		if len(syncErrors) > 1 {
			meta.Extra = map[string]string{"sync_errors": strings.Join(syncErrors, "; ")}
		}
	}
	return NewEvent(userID, integrationID, provider, ActionPrefixSync+syncType,
		statusFor(success), durationMS, errorMessage, meta)
}

// NewWebhookEvent builds an event for one inbound webhook delivery.
// Webhook deliveries are not tied to a user; only the provider and global
// scope counters move.
func NewWebhookEvent(provider, eventType string, processingMS int64, success bool, errorMessage string) (*IntegrationEvent, error) {
	return NewEvent("", "", provider, ActionPrefixWebhook+eventType,
		statusFor(success), processingMS, errorMessage, EventMetadata{})
}

// NewRateLimitEvent builds an event for one rate-limit encounter.
func NewRateLimitEvent(userID, integrationID, provider, endpoint string, retryAfterSeconds int64) (*IntegrationEvent, error) {
	return NewEvent(userID, integrationID, provider, ActionPrefixRateLimit+endpoint,
		StatusRateLimited, 0, "", EventMetadata{RetryAfterSeconds: retryAfterSeconds})
}

func statusFor(success bool) EventStatus {
	if success {
		return StatusSuccess
	}
	return StatusError
}
