// Pulse Event Reporter Example
//
// This is a minimal example of how a platform service reports integration
// telemetry to Pulse. It times an outbound API call, classifies the result,
// and posts the event.
//
// Usage:
//   export PULSE_URL="http://localhost:8080"
//   export PULSE_SERVICE_TOKEN="your_token_here"
//   go run main.go

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// TrackEventRequest mirrors the POST /api/v1/events body.
type TrackEventRequest struct {
	UserID        string            `json:"user_id,omitempty"`
	IntegrationID string            `json:"integration_id,omitempty"`
	Provider      string            `json:"provider"`
	Action        string            `json:"action"`
	Status        string            `json:"status"`
	DurationMS    int64             `json:"duration_ms,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

func main() {
	baseURL := os.Getenv("PULSE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := os.Getenv("PULSE_SERVICE_TOKEN")

	// Simulate an outbound provider call and time it.
	start := time.Now()
	err := callProvider()
	elapsed := time.Since(start).Milliseconds()

	event := TrackEventRequest{
		UserID:        "user-123",
		IntegrationID: "integration-456",
		Provider:      "jira",
		Action:        "api.fetch_issues",
		Status:        "success",
		DurationMS:    elapsed,
		Extra:         map[string]string{"project": "OPS"},
	}
	if err != nil {
		event.Status = "error"
		event.ErrorMessage = err.Error()
	}

	if err := reportEvent(baseURL, token, event); err != nil {
		log.Fatalf("report event: %v", err)
	}

	log.Printf("✓ Reported %s %s (%s) in %dms", event.Provider, event.Action, event.Status, event.DurationMS)
}

func callProvider() error {
	// Stand-in for a real provider API call.
	time.Sleep(120 * time.Millisecond)
	return nil
}

func reportEvent(baseURL, token string, event TrackEventRequest) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
