package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aurelius/pulse/internal/model"
)

const (
	// counterKeyPrefix is the Redis key prefix for minute buckets.
	counterKeyPrefix = "counters:"
	// rollupKeyPrefix is the Redis key prefix for daily rollups.
	rollupKeyPrefix = "rollup:"

	// BucketSeconds is the hot-tier aggregation granularity.
	BucketSeconds = 60

	// DefaultBucketTTL is the sliding retention window for minute buckets.
	DefaultBucketTTL = time.Hour

	// DefaultRollupTTL is the retention window for daily rollups.
	DefaultRollupTTL = 31 * 24 * time.Hour
)

// Hash field names shared by buckets and rollups.
const (
	fieldRequests    = "requests"
	fieldSuccesses   = "successes"
	fieldErrors      = "errors"
	fieldRateLimited = "rate_limited"
	fieldDurationMS  = "duration_ms"
)

// BucketIndex computes the minute bucket for a timestamp.
func BucketIndex(t time.Time) int64 {
	return t.Unix() / BucketSeconds
}

// DayKey formats a timestamp as the UTC calendar day a rollup is keyed by.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// incrementScript applies one event to a minute bucket and its daily rollup
// in a single atomic operation. Concurrent increments to the same key never
// lose updates; the bucket TTL is refreshed on every write while the rollup
// TTL is set once so a day expires a fixed horizon after it begins.
var incrementScript = redis.NewScript(`
	local bucket = KEYS[1]
	local rollup = KEYS[2]
	local field = ARGV[1]
	local duration = tonumber(ARGV[2])
	local bucket_ttl = tonumber(ARGV[3])
	local rollup_ttl = tonumber(ARGV[4])

	redis.call('HINCRBY', bucket, 'requests', 1)
	redis.call('HINCRBY', bucket, field, 1)
	if duration > 0 then
		redis.call('HINCRBY', bucket, 'duration_ms', duration)
	end
	redis.call('EXPIRE', bucket, bucket_ttl)

	redis.call('HINCRBY', rollup, 'requests', 1)
	redis.call('HINCRBY', rollup, field, 1)
	if duration > 0 then
		redis.call('HINCRBY', rollup, 'duration_ms', duration)
	end
	if redis.call('TTL', rollup) < 0 then
		redis.call('EXPIRE', rollup, rollup_ttl)
	end

	return 1
`)

// IncrementCounters applies one event to the minute bucket and daily rollup
// for a single scope. Callers invoke it once per scope the event fans out to.
func (c *Cache) IncrementCounters(ctx context.Context, scope model.Scope, event *model.IntegrationEvent) error {
	bucketKey := counterKey(scope, BucketIndex(event.OccurredAt))
	rollupKey := rollupKey(scope, DayKey(event.OccurredAt))

	err := incrementScript.Run(ctx, c.client,
		[]string{bucketKey, rollupKey},
		statusField(event.Status),
		event.DurationMS,
		int(c.bucketTTL.Seconds()),
		int(c.rollupTTL.Seconds()),
	).Err()
	if err != nil {
		return fmt.Errorf("increment counters for %s: %w", scope, err)
	}
	return nil
}

// ReadBucketRange folds the minute buckets in the inclusive range into one
// aggregate. Expired or never-written buckets contribute zero. The walk is
// bounded by the bucket TTL: buckets older than the retention window cannot
// exist, so the range is clamped instead of iterated.
func (c *Cache) ReadBucketRange(ctx context.Context, scope model.Scope, fromBucket, toBucket int64) (model.CounterStats, error) {
	var stats model.CounterStats
	if toBucket < fromBucket {
		return stats, nil
	}

	if maxBuckets := int64(c.bucketTTL.Seconds())/BucketSeconds + 1; toBucket-fromBucket+1 > maxBuckets {
		fromBucket = toBucket - maxBuckets + 1
	}

	pipe := c.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, toBucket-fromBucket+1)
	for b := fromBucket; b <= toBucket; b++ {
		cmds = append(cmds, pipe.HGetAll(ctx, counterKey(scope, b)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return model.CounterStats{}, fmt.Errorf("read bucket range for %s: %w", scope, err)
	}

	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return model.CounterStats{}, fmt.Errorf("read bucket for %s: %w", scope, err)
		}
		stats.Merge(statsFromFields(fields))
	}
	return stats, nil
}

// ReadDailyRollup returns the daily rollup counters for one scope and day.
// An expired or never-written day reads as zero.
func (c *Cache) ReadDailyRollup(ctx context.Context, scope model.Scope, day time.Time) (model.CounterStats, error) {
	fields, err := c.client.HGetAll(ctx, rollupKey(scope, DayKey(day))).Result()
	if err != nil {
		return model.CounterStats{}, fmt.Errorf("read rollup for %s: %w", scope, err)
	}
	return statsFromFields(fields), nil
}

// ReadDailyRollups returns one AggregateCounter per UTC day in [from, to],
// oldest first. Days outside the rollup retention read as zero.
func (c *Cache) ReadDailyRollups(ctx context.Context, scope model.Scope, from, to time.Time) ([]model.AggregateCounter, error) {
	start := from.UTC().Truncate(24 * time.Hour)
	end := to.UTC().Truncate(24 * time.Hour)
	if end.Before(start) {
		return nil, nil
	}

	days := make([]string, 0)
	pipe := c.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0)
	for day := start; !day.After(end); day = day.Add(24 * time.Hour) {
		key := DayKey(day)
		days = append(days, key)
		cmds = append(cmds, pipe.HGetAll(ctx, rollupKey(scope, key)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read rollups for %s: %w", scope, err)
	}

	rollups := make([]model.AggregateCounter, 0, len(cmds))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("read rollup day %s for %s: %w", days[i], scope, err)
		}
		rollups = append(rollups, model.AggregateCounter{
			Scope:        scope,
			Day:          days[i],
			CounterStats: statsFromFields(fields),
		})
	}
	return rollups, nil
}

// StreamBacklog returns pending plus unread entries for a consumer group,
// used as the ingest queue depth. A missing stream reads as zero.
func (c *Cache) StreamBacklog(ctx context.Context, stream, group string) (int64, error) {
	groups, err := c.client.XInfoGroups(ctx, stream).Result()
	if err != nil {
		if err == redis.Nil || isMissingStreamError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read stream group info: %w", err)
	}
	for _, g := range groups {
		if g.Name == group {
			return g.Pending + g.Lag, nil
		}
	}
	return 0, nil
}

func counterKey(scope model.Scope, bucket int64) string {
	return fmt.Sprintf("%s%s:%d", counterKeyPrefix, scope, bucket)
}

func rollupKey(scope model.Scope, day string) string {
	return rollupKeyPrefix + string(scope) + ":" + day
}

// statusField maps an event status to its hash field name.
func statusField(status model.EventStatus) string {
	switch status {
	case model.StatusError:
		return fieldErrors
	case model.StatusRateLimited:
		return fieldRateLimited
	default:
		return fieldSuccesses
	}
}

// statsFromFields parses a counter hash. Missing fields read as zero, so an
// empty hash (expired key) yields the zero value.
func statsFromFields(fields map[string]string) model.CounterStats {
	return model.CounterStats{
		Requests:        parseField(fields, fieldRequests),
		Successes:       parseField(fields, fieldSuccesses),
		Errors:          parseField(fields, fieldErrors),
		RateLimited:     parseField(fields, fieldRateLimited),
		TotalDurationMS: parseField(fields, fieldDurationMS),
	}
}

func parseField(fields map[string]string, name string) int64 {
	raw, ok := fields[name]
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// isMissingStreamError matches the XINFO error for a stream that has never
// been written to.
func isMissingStreamError(err error) bool {
	return err != nil && err.Error() == "ERR no such key"
}
