package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aurelius/pulse/internal/handler/dto"
	"github.com/aurelius/pulse/internal/model"
)

type fakeTracker struct {
	events []*model.IntegrationEvent
}

func (f *fakeTracker) Track(event *model.IntegrationEvent) {
	f.events = append(f.events, event)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, body io.Reader) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestTrackEvent_Accepted(t *testing.T) {
	t.Parallel()

	trk := &fakeTracker{}
	h := NewEventsHandler(trk, testLogger(), 0)

	body := `{
		"user_id": "u1",
		"integration_id": "i1",
		"provider": "jira",
		"action": "api.fetch_issues",
		"status": "success",
		"duration_ms": 150
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.TrackEvent(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if len(trk.events) != 1 {
		t.Fatalf("tracked events = %d, want 1", len(trk.events))
	}
	ev := trk.events[0]
	if ev.Provider != "jira" || ev.Action != "api.fetch_issues" || ev.Status != model.StatusSuccess {
		t.Errorf("tracked event = %+v", ev)
	}
	if ev.OccurredAt.IsZero() {
		t.Error("OccurredAt must be stamped when the caller omits it")
	}
}

func TestTrackEvent_CallerTimestampWins(t *testing.T) {
	t.Parallel()

	trk := &fakeTracker{}
	h := NewEventsHandler(trk, testLogger(), 0)

	occurred := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)
	body := `{
		"provider": "slack",
		"action": "webhook.message",
		"status": "success",
		"occurred_at": "2026-08-01T10:30:00Z"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.TrackEvent(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if !trk.events[0].OccurredAt.Equal(occurred) {
		t.Errorf("OccurredAt = %v, want %v", trk.events[0].OccurredAt, occurred)
	}
}

func TestTrackEvent_Rejections(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			name:     "malformed JSON",
			body:     `{not json`,
			wantCode: "INVALID_JSON",
		},
		{
			name:     "missing provider",
			body:     `{"action": "api.fetch", "status": "success"}`,
			wantCode: "INVALID_EVENT",
		},
		{
			name:     "missing action",
			body:     `{"provider": "jira", "status": "success"}`,
			wantCode: "INVALID_EVENT",
		},
		{
			name:     "unknown status",
			body:     `{"provider": "jira", "action": "api.fetch", "status": "sideways"}`,
			wantCode: "INVALID_EVENT",
		},
		{
			name:     "negative duration",
			body:     `{"provider": "jira", "action": "api.fetch", "status": "success", "duration_ms": -5}`,
			wantCode: "INVALID_EVENT",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			trk := &fakeTracker{}
			h := NewEventsHandler(trk, testLogger(), 0)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			h.TrackEvent(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp := decodeError(t, rec.Body); resp.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tc.wantCode)
			}
			if len(trk.events) != 0 {
				t.Errorf("rejected request must not reach the tracker")
			}
		})
	}
}

func TestTrackEvent_BodyTooLarge(t *testing.T) {
	t.Parallel()

	trk := &fakeTracker{}
	h := NewEventsHandler(trk, testLogger(), 64)

	body := `{"provider": "jira", "action": "api.fetch", "status": "success", "error_message": "` +
		strings.Repeat("x", 200) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.TrackEvent(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if resp := decodeError(t, rec.Body); resp.Code != "BODY_TOO_LARGE" {
		t.Errorf("code = %q, want BODY_TOO_LARGE", resp.Code)
	}
}
