package cache

import (
	"testing"
	"time"

	"github.com/aurelius/pulse/internal/model"
)

func TestBucketIndex(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 8, 1, 10, 30, 45, 0, time.UTC)
	idx := BucketIndex(ts)

	if idx != ts.Unix()/60 {
		t.Errorf("BucketIndex() = %d, want %d", idx, ts.Unix()/60)
	}

	// Same minute, different seconds: same bucket.
	if BucketIndex(ts.Add(14*time.Second)) != idx {
		t.Error("timestamps within one minute must share a bucket")
	}

	// Next minute: next bucket.
	if BucketIndex(ts.Add(time.Minute)) != idx+1 {
		t.Error("next minute must land in the next bucket")
	}
}

func TestDayKey(t *testing.T) {
	t.Parallel()

	// DayKey is UTC: late evening in a western timezone is the next UTC day.
	loc := time.FixedZone("PST", -8*3600)
	ts := time.Date(2026, 8, 1, 22, 0, 0, 0, loc)

	if got := DayKey(ts); got != "2026-08-02" {
		t.Errorf("DayKey() = %q, want 2026-08-02", got)
	}
}

func TestCounterKeys(t *testing.T) {
	t.Parallel()

	scope := model.ProviderScope("jira")
	if got := counterKey(scope, 1000); got != "counters:provider:jira:1000" {
		t.Errorf("counterKey() = %q", got)
	}
	if got := rollupKey(scope, "2026-08-01"); got != "rollup:provider:jira:2026-08-01" {
		t.Errorf("rollupKey() = %q", got)
	}
}

func TestStatusField(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status model.EventStatus
		want   string
	}{
		{model.StatusSuccess, "successes"},
		{model.StatusError, "errors"},
		{model.StatusRateLimited, "rate_limited"},
	}

	for _, tc := range testCases {
		if got := statusField(tc.status); got != tc.want {
			t.Errorf("statusField(%q) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestStatsFromFields(t *testing.T) {
	t.Parallel()

	// Empty hash (expired key) reads as the zero value.
	if got := statsFromFields(map[string]string{}); !got.IsZero() {
		t.Errorf("empty fields produced %+v", got)
	}

	fields := map[string]string{
		"requests":     "5",
		"successes":    "3",
		"errors":       "1",
		"rate_limited": "1",
		"duration_ms":  "750",
	}
	got := statsFromFields(fields)
	want := model.CounterStats{Requests: 5, Successes: 3, Errors: 1, RateLimited: 1, TotalDurationMS: 750}
	if got != want {
		t.Errorf("statsFromFields() = %+v, want %+v", got, want)
	}

	// Garbage values read as zero rather than poisoning the aggregate.
	got = statsFromFields(map[string]string{"requests": "not-a-number"})
	if got.Requests != 0 {
		t.Errorf("garbage field parsed to %d", got.Requests)
	}
}
