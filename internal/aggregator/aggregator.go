// Package aggregator derives on-demand metric views by combining the hot
// counter tier with the durable event log. Nothing here is stored; every
// view is computed at query time.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aurelius/pulse/internal/cache"
	"github.com/aurelius/pulse/internal/metrics"
	"github.com/aurelius/pulse/internal/model"
	"github.com/aurelius/pulse/internal/repository"
	"github.com/aurelius/pulse/internal/tracker"
)

// Aggregator errors.
var (
	ErrIntegrationNotFound = errors.New("integration not found")
)

const (
	// DefaultTopErrorsLimit is the number of grouped errors returned when
	// the caller does not specify one.
	DefaultTopErrorsLimit = 10

	// DefaultTrendThreshold is the error-rate movement, in percentage
	// points, below which a provider trend is reported as stable.
	DefaultTrendThreshold = 5.0

	// syncLogSample is how many recent sync-log rows feed the per-user
	// sync statistics.
	syncLogSample = 50

	// healthWindow is the lookback used for provider health scores.
	healthWindow = time.Hour
)

// HotReader reads minute-bucket and rollup counters from the hot tier.
type HotReader interface {
	ReadBucketRange(ctx context.Context, scope model.Scope, fromBucket, toBucket int64) (model.CounterStats, error)
	ReadDailyRollups(ctx context.Context, scope model.Scope, from, to time.Time) ([]model.AggregateCounter, error)
	StreamBacklog(ctx context.Context, stream, group string) (int64, error)
	BucketTTL() time.Duration
}

// EventStore aggregates over the durable event log.
type EventStore interface {
	ProviderStats(ctx context.Context, provider string, from, to time.Time) (model.CounterStats, error)
	UserStats(ctx context.Context, userID string, from, to time.Time) (model.CounterStats, error)
	GlobalStats(ctx context.Context, from, to time.Time) (model.CounterStats, error)
	TopErrors(ctx context.Context, provider string, since time.Time, limit int) ([]model.TopError, error)
}

// IntegrationStore reads the platform's integration records.
type IntegrationStore interface {
	GetIntegration(ctx context.Context, id string) (*model.Integration, error)
	CountIntegrations(ctx context.Context) (total, active int64, err error)
	CountConnectedUsers(ctx context.Context) (int64, error)
	ListProviders(ctx context.Context) ([]string, error)
}

// SyncLogStore reads the platform's sync history.
type SyncLogStore interface {
	RecentSyncLogs(ctx context.Context, integrationID string, limit int) ([]*model.SyncLog, error)
}

// Aggregator assembles derived metric views.
type Aggregator struct {
	hot            HotReader
	events         EventStore
	integrations   IntegrationStore
	syncLogs       SyncLogStore
	logger         *slog.Logger
	metrics        metrics.Recorder
	trendThreshold float64
	now            func() time.Time
}

// New creates an Aggregator.
func New(hot HotReader, events EventStore, integrations IntegrationStore, syncLogs SyncLogStore, logger *slog.Logger, recorder metrics.Recorder) *Aggregator {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Aggregator{
		hot:            hot,
		events:         events,
		integrations:   integrations,
		syncLogs:       syncLogs,
		logger:         logger.With("component", "aggregator"),
		metrics:        recorder,
		trendThreshold: DefaultTrendThreshold,
		now:            time.Now,
	}
}

// SetTrendThreshold overrides the stable-band width in percentage points.
func (a *Aggregator) SetTrendThreshold(points float64) {
	if points > 0 {
		a.trendThreshold = points
	}
}

// SetNow overrides the clock. Tests only.
func (a *Aggregator) SetNow(now func() time.Time) {
	a.now = now
}

// GetProviderMetrics computes the provider-level view over the requested
// window. A provider with no events in range yields a zero snapshot.
func (a *Aggregator) GetProviderMetrics(ctx context.Context, provider string, timeRange model.TimeRange) (*model.ProviderMetrics, error) {
	start := a.now()
	defer func() {
		a.metrics.ObserveQueryDuration("provider", time.Since(start))
	}()

	now := a.now()
	since := now.Add(-timeRange.Duration())
	scope := model.ProviderScope(provider)

	stats, err := a.windowStats(ctx, scope, provider, providerDimension, since, now)
	if err != nil {
		a.metrics.IncQueryServed("provider", "error")
		return nil, fmt.Errorf("provider %s (%s): %w", provider, timeRange, err)
	}

	topErrors, err := a.events.TopErrors(ctx, provider, now.Add(-24*time.Hour), DefaultTopErrorsLimit)
	if err != nil {
		a.metrics.IncQueryServed("provider", "error")
		return nil, fmt.Errorf("provider %s top errors: %w", provider, err)
	}

	trend, err := a.performanceTrend(ctx, scope, provider, since, now)
	if err != nil {
		// Trend is a derived extra; log and report stable rather than
		// failing the whole view.
		a.logger.Warn("trend computation failed", "provider", provider, "error", err)
		trend = model.TrendStable
	}

	a.metrics.IncQueryServed("provider", "success")

	return &model.ProviderMetrics{
		Provider:              provider,
		TimeRange:             timeRange,
		TotalRequests:         stats.Requests,
		SuccessRate:           stats.SuccessRate(),
		ErrorRate:             stats.ErrorRate(),
		RateLimitRate:         stats.RateLimitRate(),
		AverageResponseTimeMS: stats.AverageDurationMS(),
		RequestsPerHour:       requestsPerHour(stats.Requests, timeRange.Hours()),
		TopErrors:             topErrors,
		PerformanceTrend:      trend,
		GeneratedAt:           now.UTC(),
	}, nil
}

// GetProviderDailySeries returns one counter snapshot per calendar day from
// the hot-tier rollups, most recent day last. Days without traffic appear
// as zero entries.
func (a *Aggregator) GetProviderDailySeries(ctx context.Context, provider string, days int) ([]model.AggregateCounter, error) {
	if days <= 0 {
		days = 7
	}
	now := a.now()
	from := now.AddDate(0, 0, -(days - 1))

	series, err := a.hot.ReadDailyRollups(ctx, model.ProviderScope(provider), from, now)
	if err != nil {
		a.metrics.IncQueryServed("provider_daily", "error")
		return nil, fmt.Errorf("provider %s daily series: %w", provider, err)
	}
	a.metrics.IncQueryServed("provider_daily", "success")
	return series, nil
}

// GetUserIntegrationMetrics computes the per-user, per-integration view:
// request counters over the last 24 hours plus sync statistics from the
// most recent sync-log rows.
func (a *Aggregator) GetUserIntegrationMetrics(ctx context.Context, userID, integrationID string) (*model.UserIntegrationMetrics, error) {
	start := a.now()
	defer func() {
		a.metrics.ObserveQueryDuration("user", time.Since(start))
	}()

	integration, err := a.integrations.GetIntegration(ctx, integrationID)
	if err != nil {
		a.metrics.IncQueryServed("user", "error")
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			return nil, ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("integration %s: %w", integrationID, err)
	}

	now := a.now()
	since := now.Add(-24 * time.Hour)

	stats, err := a.windowStats(ctx, model.UserScope(userID), userID, userDimension, since, now)
	if err != nil {
		a.metrics.IncQueryServed("user", "error")
		return nil, fmt.Errorf("user %s counters: %w", userID, err)
	}

	logs, err := a.syncLogs.RecentSyncLogs(ctx, integrationID, syncLogSample)
	if err != nil {
		a.metrics.IncQueryServed("user", "error")
		return nil, fmt.Errorf("integration %s sync logs: %w", integrationID, err)
	}

	syncStats := summarizeSyncLogs(logs)
	a.metrics.IncQueryServed("user", "success")

	return &model.UserIntegrationMetrics{
		UserID:                userID,
		IntegrationID:         integrationID,
		Provider:              integration.Provider,
		TotalRequests:         stats.Requests,
		SuccessRate:           stats.SuccessRate(),
		ErrorRate:             stats.ErrorRate(),
		RateLimitRate:         stats.RateLimitRate(),
		AverageResponseTimeMS: stats.AverageDurationMS(),
		TotalSyncs:            syncStats.total,
		SuccessfulSyncs:       syncStats.successful,
		FailedSyncs:           syncStats.failed,
		AverageSyncDurationMS: syncStats.averageDurationMS,
		GeneratedAt:           now.UTC(),
	}, nil
}

// GetSystemMetrics assembles the platform-wide snapshot. Sub-queries run
// concurrently; the first failure cancels the rest.
func (a *Aggregator) GetSystemMetrics(ctx context.Context) (*model.SystemMetrics, error) {
	start := a.now()
	defer func() {
		a.metrics.ObserveQueryDuration("system", time.Since(start))
	}()

	now := a.now()
	since := now.Add(-24 * time.Hour)
	out := &model.SystemMetrics{GeneratedAt: now.UTC()}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		total, active, err := a.integrations.CountIntegrations(gctx)
		if err != nil {
			return fmt.Errorf("count integrations: %w", err)
		}
		out.TotalIntegrations = total
		out.ActiveIntegrations = active
		return nil
	})

	g.Go(func() error {
		users, err := a.integrations.CountConnectedUsers(gctx)
		if err != nil {
			return fmt.Errorf("count connected users: %w", err)
		}
		out.ConnectedUsers = users
		return nil
	})

	g.Go(func() error {
		stats, err := a.windowStats(gctx, model.GlobalScope, "", globalDimension, since, now)
		if err != nil {
			return fmt.Errorf("global counters: %w", err)
		}
		out.TotalRequests24h = stats.Requests
		out.SuccessRate24h = stats.SuccessRate()
		out.ErrorRate24h = stats.ErrorRate()
		out.RateLimitRate24h = stats.RateLimitRate()
		out.AverageResponseTimeMS = stats.AverageDurationMS()
		return nil
	})

	g.Go(func() error {
		depth, err := a.hot.StreamBacklog(gctx, tracker.StreamKey, tracker.ConsumerGroup)
		if err != nil {
			return fmt.Errorf("ingest backlog: %w", err)
		}
		out.IngestQueueDepth = depth
		return nil
	})

	g.Go(func() error {
		health, err := a.providerHealth(gctx, now)
		if err != nil {
			return fmt.Errorf("provider health: %w", err)
		}
		out.ProviderHealth = health
		return nil
	})

	if err := g.Wait(); err != nil {
		a.metrics.IncQueryServed("system", "error")
		return nil, err
	}

	a.metrics.IncQueryServed("system", "success")
	return out, nil
}

// GetTopErrors returns the most frequent error messages over the last 24
// hours, optionally filtered to one provider.
func (a *Aggregator) GetTopErrors(ctx context.Context, provider string, limit int) ([]model.TopError, error) {
	if limit <= 0 {
		limit = DefaultTopErrorsLimit
	}

	now := a.now()
	errs, err := a.events.TopErrors(ctx, provider, now.Add(-24*time.Hour), limit)
	if err != nil {
		a.metrics.IncQueryServed("top_errors", "error")
		return nil, fmt.Errorf("top errors: %w", err)
	}

	a.metrics.IncQueryServed("top_errors", "success")
	return errs, nil
}

type dimension int

const (
	providerDimension dimension = iota
	userDimension
	globalDimension
)

// windowStats combines both tiers for one scope over [from, to). The hot
// tier only holds roughly the last hour of buckets, so the split point is
// anchored to the current clock rather than the window edge: a sub-window
// that ends in the past reads entirely from the durable log, where those
// events have long since landed.
func (a *Aggregator) windowStats(ctx context.Context, scope model.Scope, dim string, kind dimension, from, to time.Time) (model.CounterStats, error) {
	// Aligned to the minute so the cold range and the hot buckets never
	// cover the same instant.
	hotStart := a.now().Add(-a.hot.BucketTTL()).Truncate(time.Minute)
	if hotStart.Before(from) {
		hotStart = from
	}
	if !hotStart.Before(to) {
		// The whole window predates the hot horizon.
		return a.coldStats(ctx, dim, kind, from, to)
	}

	var stats model.CounterStats

	if hotStart.After(from) {
		cold, err := a.coldStats(ctx, dim, kind, from, hotStart)
		if err != nil {
			return model.CounterStats{}, err
		}
		stats.Merge(cold)
	}

	fromBucket := cache.BucketIndex(hotStart)
	toBucket := cache.BucketIndex(to)
	if to.Equal(to.Truncate(time.Minute)) {
		// Half-open window: a to on a minute boundary excludes that
		// minute's bucket, so adjacent windows never share one.
		toBucket--
	}
	if toBucket >= fromBucket {
		hot, err := a.hot.ReadBucketRange(ctx, scope, fromBucket, toBucket)
		if err != nil {
			return model.CounterStats{}, fmt.Errorf("hot tier: %w", err)
		}
		stats.Merge(hot)
	}

	return stats, nil
}

func (a *Aggregator) coldStats(ctx context.Context, dim string, kind dimension, from, to time.Time) (model.CounterStats, error) {
	switch kind {
	case providerDimension:
		return a.events.ProviderStats(ctx, dim, from, to)
	case userDimension:
		return a.events.UserStats(ctx, dim, from, to)
	default:
		return a.events.GlobalStats(ctx, from, to)
	}
}

// performanceTrend compares error rates between the first and second half
// of the window. Movement inside the threshold band reads as stable. The
// midpoint is minute-aligned so the halves split cleanly on a bucket edge.
func (a *Aggregator) performanceTrend(ctx context.Context, scope model.Scope, provider string, from, to time.Time) (model.Trend, error) {
	mid := from.Add(to.Sub(from) / 2).Truncate(time.Minute)

	first, err := a.windowStats(ctx, scope, provider, providerDimension, from, mid)
	if err != nil {
		return model.TrendStable, err
	}
	second, err := a.windowStats(ctx, scope, provider, providerDimension, mid, to)
	if err != nil {
		return model.TrendStable, err
	}

	// Not enough signal in either half to call a direction.
	if first.IsZero() || second.IsZero() {
		return model.TrendStable, nil
	}

	delta := second.ErrorRate() - first.ErrorRate()
	switch {
	case delta <= -a.trendThreshold:
		return model.TrendImproving, nil
	case delta >= a.trendThreshold:
		return model.TrendDegrading, nil
	default:
		return model.TrendStable, nil
	}
}

// providerHealth scores each known provider 0-100 from its success rate
// over the last hour of hot-tier counters. Providers with no recent
// traffic score 100.
func (a *Aggregator) providerHealth(ctx context.Context, now time.Time) ([]model.ProviderHealth, error) {
	providers, err := a.integrations.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	from := now.Add(-healthWindow)
	health := make([]model.ProviderHealth, 0, len(providers))
	for _, provider := range providers {
		stats, err := a.hot.ReadBucketRange(ctx, model.ProviderScope(provider), cache.BucketIndex(from), cache.BucketIndex(now))
		if err != nil {
			return nil, fmt.Errorf("provider %s counters: %w", provider, err)
		}
		score := 100.0
		if !stats.IsZero() {
			score = stats.SuccessRate()
		}
		health = append(health, model.ProviderHealth{Provider: provider, Score: score})
	}
	return health, nil
}

type syncSummary struct {
	total             int64
	successful        int64
	failed            int64
	averageDurationMS float64
}

// summarizeSyncLogs folds recent sync rows into aggregate counts. Only
// completed syncs contribute to the average duration.
func summarizeSyncLogs(logs []*model.SyncLog) syncSummary {
	var out syncSummary
	var totalDuration int64
	var completed int64

	for _, log := range logs {
		out.total++
		switch log.Status {
		case "success":
			out.successful++
		case "failed":
			out.failed++
		}
		if d, ok := log.DurationMS(); ok {
			totalDuration += d
			completed++
		}
	}

	if completed > 0 {
		out.averageDurationMS = float64(totalDuration) / float64(completed)
	}
	return out
}

func requestsPerHour(requests int64, hours float64) float64 {
	if hours <= 0 {
		return 0
	}
	return float64(requests) / hours
}
