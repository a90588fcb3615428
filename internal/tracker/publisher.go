// Package tracker provides integration event capture and ingestion.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aurelius/pulse/internal/metrics"
	"github.com/aurelius/pulse/internal/model"
)

const (
	// StreamKey is the Redis stream for integration events awaiting durable
	// insert.
	StreamKey = "stream:integration_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:integration_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// maxErrorMessageLen caps error messages on the wire. The cold tier
	// truncates further (to 100 chars) when grouping top errors.
	maxErrorMessageLen = 500
)

// eventPayload is the compressed event format for the ingest stream.
type eventPayload struct {
	UserID            string            `json:"u,omitempty"`
	IntegrationID     string            `json:"i,omitempty"`
	Provider          string            `json:"p"`
	Action            string            `json:"a"`
	Status            string            `json:"s"`
	DurationMS        int64             `json:"d,omitempty"`
	ErrorMessage      string            `json:"e,omitempty"`
	ItemsProcessed    int64             `json:"ip,omitempty"`
	RetryAfterSeconds int64             `json:"ra,omitempty"`
	Extra             map[string]string `json:"x,omitempty"`
	OccurredAt        int64             `json:"t"` // Unix milliseconds
}

// Publisher enqueues integration events to the durable ingest stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new ingest stream publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "tracker.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the ingest stream and returns the stream ID.
// The stream ID doubles as the durable record's idempotency key.
func (p *Publisher) Publish(ctx context.Context, event *model.IntegrationEvent) (string, error) {
	data, err := json.Marshal(payloadFromEvent(event))
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

func payloadFromEvent(event *model.IntegrationEvent) eventPayload {
	return eventPayload{
		UserID:            event.UserID,
		IntegrationID:     event.IntegrationID,
		Provider:          event.Provider,
		Action:            event.Action,
		Status:            string(event.Status),
		DurationMS:        event.DurationMS,
		ErrorMessage:      truncate(event.ErrorMessage, maxErrorMessageLen),
		ItemsProcessed:    event.Metadata.ItemsProcessed,
		RetryAfterSeconds: event.Metadata.RetryAfterSeconds,
		Extra:             event.Metadata.Extra,
		OccurredAt:        event.OccurredAt.UnixMilli(),
	}
}

func eventFromPayload(payload eventPayload) *model.IntegrationEvent {
	return &model.IntegrationEvent{
		UserID:        payload.UserID,
		IntegrationID: payload.IntegrationID,
		Provider:      payload.Provider,
		Action:        payload.Action,
		Status:        model.EventStatus(payload.Status),
		DurationMS:    payload.DurationMS,
		ErrorMessage:  payload.ErrorMessage,
		Metadata: model.EventMetadata{
			ItemsProcessed:    payload.ItemsProcessed,
			RetryAfterSeconds: payload.RetryAfterSeconds,
			Extra:             payload.Extra,
		},
		OccurredAt: time.UnixMilli(payload.OccurredAt).UTC(),
	}
}

// truncate caps a string at max bytes.
func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
