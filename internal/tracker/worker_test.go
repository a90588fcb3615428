package tracker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aurelius/pulse/internal/model"
)

func TestParseMessages_ValidPayloads(t *testing.T) {
	t.Parallel()

	w := NewWorker(nil, nil, discardLogger(), "test-consumer", nil)

	occurred := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	payload, err := json.Marshal(payloadFromEvent(&model.IntegrationEvent{
		UserID:     "u1",
		Provider:   "jira",
		Action:     "api.get_issue",
		Status:     model.StatusSuccess,
		DurationMS: 100,
		OccurredAt: occurred,
	}))
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	messages := []redis.XMessage{
		{ID: "1700000000000-0", Values: map[string]interface{}{"payload": string(payload)}},
		{ID: "1700000000000-1", Values: map[string]interface{}{"payload": string(payload)}},
	}

	events, messageIDs := w.parseMessages(context.Background(), messages)

	if len(events) != 2 {
		t.Fatalf("parsed %d events, want 2", len(events))
	}
	if len(messageIDs) != 2 {
		t.Fatalf("collected %d message IDs, want 2", len(messageIDs))
	}

	first := events[0]
	if first.EventID != "1700000000000-0" {
		t.Errorf("EventID = %q, want the stream ID", first.EventID)
	}
	if first.ID == "" {
		t.Error("durable ID must be assigned during parse")
	}
	if events[0].ID == events[1].ID {
		t.Error("each event must get a distinct durable ID")
	}
	if !first.OccurredAt.Equal(occurred) {
		t.Errorf("OccurredAt = %v, want %v", first.OccurredAt, occurred)
	}
}

func TestIsConsumerGroupExistsError(t *testing.T) {
	t.Parallel()

	if !isConsumerGroupExistsError(errBusyGroup{}) {
		t.Error("BUSYGROUP error should be recognized")
	}
	if isConsumerGroupExistsError(nil) {
		t.Error("nil is not a BUSYGROUP error")
	}
}

type errBusyGroup struct{}

func (errBusyGroup) Error() string { return "BUSYGROUP Consumer Group name already exists" }
