package model

import (
	"fmt"
	"time"
)

// TimeRange is a supported metrics query window.
type TimeRange string

// Supported query windows.
const (
	Range1h  TimeRange = "1h"
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"
)

// ParseTimeRange validates a query-string range value.
func ParseTimeRange(s string) (TimeRange, error) {
	switch TimeRange(s) {
	case Range1h, Range24h, Range7d, Range30d:
		return TimeRange(s), nil
	case "":
		return Range24h, nil
	}
	return "", fmt.Errorf("unsupported time range %q", s)
}

// Duration returns the window length.
func (r TimeRange) Duration() time.Duration {
	switch r {
	case Range1h:
		return time.Hour
	case Range7d:
		return 7 * 24 * time.Hour
	case Range30d:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Hours returns the window length in hours for per-hour rate derivation.
func (r TimeRange) Hours() float64 { return r.Duration().Hours() }

// Trend classifies how a provider's error rate moved across the query window.
type Trend string

// Trend classifications.
const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
)

// TopError is one grouped error message with its frequency.
type TopError struct {
	Message string `json:"message"` // truncated to 100 chars
	Count   int64  `json:"count"`
}

// ProviderMetrics is the derived provider-level view. Computed on query,
// never stored. A provider with no events in range yields a zero snapshot.
type ProviderMetrics struct {
	Provider              string     `json:"provider"`
	TimeRange             TimeRange  `json:"time_range"`
	TotalRequests         int64      `json:"total_requests"`
	SuccessRate           float64    `json:"success_rate"`
	ErrorRate             float64    `json:"error_rate"`
	RateLimitRate         float64    `json:"rate_limit_rate"`
	AverageResponseTimeMS float64    `json:"average_response_time_ms"`
	RequestsPerHour       float64    `json:"requests_per_hour"`
	TopErrors             []TopError `json:"top_errors"`
	PerformanceTrend      Trend      `json:"performance_trend"`
	GeneratedAt           time.Time  `json:"generated_at"`
}

// UserIntegrationMetrics is the derived per-user, per-integration view.
type UserIntegrationMetrics struct {
	UserID        string `json:"user_id"`
	IntegrationID string `json:"integration_id"`
	Provider      string `json:"provider"`

	// Request counters over the last 24 hours.
	TotalRequests         int64   `json:"total_requests"`
	SuccessRate           float64 `json:"success_rate"`
	ErrorRate             float64 `json:"error_rate"`
	RateLimitRate         float64 `json:"rate_limit_rate"`
	AverageResponseTimeMS float64 `json:"average_response_time_ms"`

	// Sync statistics from the most recent durable sync-log records.
	TotalSyncs            int64   `json:"total_syncs"`
	SuccessfulSyncs       int64   `json:"successful_syncs"`
	FailedSyncs           int64   `json:"failed_syncs"`
	AverageSyncDurationMS float64 `json:"average_sync_duration_ms"`

	GeneratedAt time.Time `json:"generated_at"`
}

// ProviderHealth is a single rolled-up health number for one provider.
type ProviderHealth struct {
	Provider string  `json:"provider"`
	Score    float64 `json:"score"` // 0-100, from recent success rate
}

// SystemMetrics is the platform-wide snapshot assembled from concurrent
// sub-queries.
type SystemMetrics struct {
	TotalIntegrations  int64 `json:"total_integrations"`
	ActiveIntegrations int64 `json:"active_integrations"`
	ConnectedUsers     int64 `json:"connected_users"`

	TotalRequests24h      int64   `json:"total_requests_24h"`
	SuccessRate24h        float64 `json:"success_rate_24h"`
	ErrorRate24h          float64 `json:"error_rate_24h"`
	RateLimitRate24h      float64 `json:"rate_limit_rate_24h"`
	AverageResponseTimeMS float64 `json:"average_response_time_ms"`

	IngestQueueDepth int64 `json:"ingest_queue_depth"`

	ProviderHealth []ProviderHealth `json:"provider_health"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Integration is a connected third-party account, owned by the platform's
// relational store. Read-only from the telemetry engine's perspective.
type Integration struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Provider  string    `json:"provider"`
	Status    string    `json:"status"` // connected, disconnected, error
	CreatedAt time.Time `json:"created_at"`
}

// SyncLog is one recorded sync pass for an integration, owned by the
// platform's relational store.
type SyncLog struct {
	ID             string     `json:"id"`
	IntegrationID  string     `json:"integration_id"`
	SyncType       string     `json:"sync_type"`
	Status         string     `json:"status"` // success, failed, running
	ItemsProcessed int64      `json:"items_processed"`
	Errors         []string   `json:"errors,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"` // nil while in flight
}

// DurationMS returns the sync elapsed time, or false while in flight.
// In-flight syncs are excluded from averages, not treated as zero.
func (s *SyncLog) DurationMS() (int64, bool) {
	if s.CompletedAt == nil {
		return 0, false
	}
	return s.CompletedAt.Sub(s.StartedAt).Milliseconds(), true
}
