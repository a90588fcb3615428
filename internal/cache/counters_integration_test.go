//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/aurelius/pulse/internal/model"
	"github.com/aurelius/pulse/internal/testutil"
)

func newCacheTestEnv(t *testing.T) (context.Context, *Cache) {
	t.Helper()

	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	ctx := context.Background()

	c, err := New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect to Redis: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush Redis: %v", err)
	}

	return ctx, c
}

func TestIntegrationIncrementCounters_JiraScenario(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	scope := model.ProviderScope("jira")
	occurred := time.Now().UTC()

	events := []*model.IntegrationEvent{
		{Provider: "jira", Action: "api.get_issue", Status: model.StatusSuccess, DurationMS: 100, OccurredAt: occurred},
		{Provider: "jira", Action: "api.get_issue", Status: model.StatusSuccess, DurationMS: 200, OccurredAt: occurred},
		{Provider: "jira", Action: "api.get_issue", Status: model.StatusError, OccurredAt: occurred},
	}
	for _, ev := range events {
		if err := c.IncrementCounters(ctx, scope, ev); err != nil {
			t.Fatalf("IncrementCounters: %v", err)
		}
	}

	bucket := BucketIndex(occurred)
	stats, err := c.ReadBucketRange(ctx, scope, bucket, bucket)
	if err != nil {
		t.Fatalf("ReadBucketRange: %v", err)
	}

	if stats.Requests != 3 {
		t.Errorf("Requests = %d, want 3", stats.Requests)
	}
	if got := stats.SuccessRate(); got != 66.67 {
		t.Errorf("SuccessRate = %v, want 66.67", got)
	}
	if got := stats.ErrorRate(); got != 33.33 {
		t.Errorf("ErrorRate = %v, want 33.33", got)
	}
	if got := stats.AverageDurationMS(); got != 100 {
		t.Errorf("AverageDurationMS = %v, want 100", got)
	}
}

func TestIntegrationIncrementCounters_RollupAccumulates(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	scope := model.UserScope("u1")
	occurred := time.Now().UTC()
	ev := &model.IntegrationEvent{Provider: "asana", Action: "sync.tasks", Status: model.StatusSuccess, DurationMS: 50, OccurredAt: occurred}

	for i := 0; i < 4; i++ {
		if err := c.IncrementCounters(ctx, scope, ev); err != nil {
			t.Fatalf("IncrementCounters: %v", err)
		}
	}

	rollup, err := c.ReadDailyRollup(ctx, scope, occurred)
	if err != nil {
		t.Fatalf("ReadDailyRollup: %v", err)
	}
	if rollup.Requests != 4 || rollup.Successes != 4 {
		t.Errorf("rollup = %+v, want 4 successful requests", rollup)
	}
	if rollup.TotalDurationMS != 200 {
		t.Errorf("rollup duration = %d, want 200", rollup.TotalDurationMS)
	}
}

func TestIntegrationReadBucketRange_MissingBucketsReadZero(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	scope := model.ProviderScope("never-written")
	now := BucketIndex(time.Now())

	stats, err := c.ReadBucketRange(ctx, scope, now-10, now)
	if err != nil {
		t.Fatalf("ReadBucketRange: %v", err)
	}
	if !stats.IsZero() {
		t.Errorf("missing buckets read as %+v, want zero", stats)
	}
}

func TestIntegrationReadDailyRollups_SeriesOrder(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	scope := model.ProviderScope("jira")
	now := time.Now().UTC()
	ev := &model.IntegrationEvent{Provider: "jira", Action: "api.x", Status: model.StatusSuccess, DurationMS: 1, OccurredAt: now}
	if err := c.IncrementCounters(ctx, scope, ev); err != nil {
		t.Fatalf("IncrementCounters: %v", err)
	}

	series, err := c.ReadDailyRollups(ctx, scope, now.AddDate(0, 0, -2), now)
	if err != nil {
		t.Fatalf("ReadDailyRollups: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("series length = %d, want 3", len(series))
	}
	// Oldest first; only today has traffic.
	if !series[0].IsZero() || !series[1].IsZero() {
		t.Error("past days should read zero")
	}
	if series[2].Requests != 1 {
		t.Errorf("today's rollup = %+v, want 1 request", series[2].CounterStats)
	}
	if series[2].Day != DayKey(now) {
		t.Errorf("today's day key = %q, want %q", series[2].Day, DayKey(now))
	}
}

func TestIntegrationStreamBacklog_MissingStream(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	depth, err := c.StreamBacklog(ctx, "stream:does-not-exist", "group")
	if err != nil {
		t.Fatalf("StreamBacklog: %v", err)
	}
	if depth != 0 {
		t.Errorf("depth = %d, want 0", depth)
	}
}
