package model

import "math"

// Scope is the dimension a counter is keyed by.
type Scope string

// GlobalScope covers all activity regardless of provider, user or integration.
const GlobalScope Scope = "global"

// ProviderScope keys counters by provider name.
func ProviderScope(provider string) Scope { return Scope("provider:" + provider) }

// UserScope keys counters by user ID.
func UserScope(userID string) Scope { return Scope("user:" + userID) }

// IntegrationScope keys counters by integration ID.
func IntegrationScope(integrationID string) Scope { return Scope("integration:" + integrationID) }

// ScopesFor returns every scope an event must increment: provider, user,
// integration and global. Dimensions absent from the event (webhook events
// carry no user) are skipped.
func ScopesFor(e *IntegrationEvent) []Scope {
	scopes := make([]Scope, 0, 4)
	scopes = append(scopes, ProviderScope(e.Provider))
	if e.UserID != "" {
		scopes = append(scopes, UserScope(e.UserID))
	}
	if e.IntegrationID != "" {
		scopes = append(scopes, IntegrationScope(e.IntegrationID))
	}
	return append(scopes, GlobalScope)
}

// CounterStats is the additive core shared by minute buckets and daily
// rollups. Invariant: Requests == Successes + Errors + RateLimited after
// any sequence of updates.
type CounterStats struct {
	Requests        int64 `json:"requests"`
	Successes       int64 `json:"successes"`
	Errors          int64 `json:"errors"`
	RateLimited     int64 `json:"rate_limited"`
	TotalDurationMS int64 `json:"total_duration_ms"`
}

// Observe applies one event outcome to the counters.
func (s *CounterStats) Observe(status EventStatus, durationMS int64) {
	s.Requests++
	switch status {
	case StatusSuccess:
		s.Successes++
	case StatusError:
		s.Errors++
	case StatusRateLimited:
		s.RateLimited++
	}
	if durationMS > 0 {
		s.TotalDurationMS += durationMS
	}
}

// Merge folds another counter into this one. Missing buckets contribute a
// zero value, so folding an expired bucket is a no-op.
func (s *CounterStats) Merge(other CounterStats) {
	s.Requests += other.Requests
	s.Successes += other.Successes
	s.Errors += other.Errors
	s.RateLimited += other.RateLimited
	s.TotalDurationMS += other.TotalDurationMS
}

// IsZero reports whether no events were observed.
func (s CounterStats) IsZero() bool { return s.Requests == 0 }

// SuccessRate returns successes as a percentage of requests.
func (s CounterStats) SuccessRate() float64 { return Percentage(s.Successes, s.Requests) }

// ErrorRate returns errors as a percentage of requests.
func (s CounterStats) ErrorRate() float64 { return Percentage(s.Errors, s.Requests) }

// RateLimitRate returns rate-limited calls as a percentage of requests.
func (s CounterStats) RateLimitRate() float64 { return Percentage(s.RateLimited, s.Requests) }

// AverageDurationMS returns the mean duration, 0 when no requests.
func (s CounterStats) AverageDurationMS() float64 {
	if s.Requests == 0 {
		return 0
	}
	return round2(float64(s.TotalDurationMS) / float64(s.Requests))
}

// CounterBucket is the hot-tier unit of storage: one minute of activity for
// one scope. Buckets are created lazily and expire via TTL.
type CounterBucket struct {
	Scope  Scope `json:"scope"`
	Bucket int64 `json:"bucket"` // floor(unix seconds / 60)
	CounterStats
}

// AggregateCounter is the daily rollup unit: one calendar day of activity
// for one scope. Monotonically non-decreasing until its TTL expires.
type AggregateCounter struct {
	Scope Scope  `json:"scope"`
	Day   string `json:"day"` // YYYY-MM-DD, UTC
	CounterStats
}

// Percentage computes part/total*100 rounded to two decimals. A zero total
// yields 0, never NaN.
func Percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
