package tracker

import (
	"strings"
	"testing"
	"time"

	"github.com/aurelius/pulse/internal/model"
)

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	occurred := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)
	event := &model.IntegrationEvent{
		UserID:        "u1",
		IntegrationID: "i1",
		Provider:      "jira",
		Action:        "api.get_issue",
		Status:        model.StatusError,
		DurationMS:    150,
		ErrorMessage:  "timeout after 30s",
		Metadata: model.EventMetadata{
			ItemsProcessed:    12,
			RetryAfterSeconds: 0,
			Extra:             map[string]string{"endpoint": "/rest/api/3/issue"},
		},
		OccurredAt: occurred,
	}

	got := eventFromPayload(payloadFromEvent(event))

	if got.UserID != event.UserID || got.IntegrationID != event.IntegrationID {
		t.Errorf("identity fields lost: %+v", got)
	}
	if got.Provider != "jira" || got.Action != "api.get_issue" {
		t.Errorf("provider/action lost: %+v", got)
	}
	if got.Status != model.StatusError || got.DurationMS != 150 {
		t.Errorf("outcome fields lost: %+v", got)
	}
	if got.ErrorMessage != "timeout after 30s" {
		t.Errorf("ErrorMessage = %q", got.ErrorMessage)
	}
	if got.Metadata.ItemsProcessed != 12 {
		t.Errorf("ItemsProcessed = %d", got.Metadata.ItemsProcessed)
	}
	if got.Metadata.Extra["endpoint"] != "/rest/api/3/issue" {
		t.Errorf("Extra lost: %+v", got.Metadata.Extra)
	}
	if !got.OccurredAt.Equal(occurred) {
		t.Errorf("OccurredAt = %v, want %v", got.OccurredAt, occurred)
	}
}

func TestPayloadTruncatesLongErrorMessages(t *testing.T) {
	t.Parallel()

	event := &model.IntegrationEvent{
		Provider:     "jira",
		Action:       "api.x",
		Status:       model.StatusError,
		ErrorMessage: strings.Repeat("x", 2000),
		OccurredAt:   time.Now(),
	}

	payload := payloadFromEvent(event)
	if len(payload.ErrorMessage) != maxErrorMessageLen {
		t.Errorf("wire error message length = %d, want %d", len(payload.ErrorMessage), maxErrorMessageLen)
	}
}
