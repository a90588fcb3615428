// Package sweeper enforces the durable log's retention horizon. The hot
// tier expires on its own via Redis TTLs and needs no sweeping.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aurelius/pulse/internal/metrics"
)

const (
	// DefaultBatchSize bounds each delete statement so a large backlog
	// never holds row locks for long.
	DefaultBatchSize = 5000

	// DefaultRetention is how long durable events are kept.
	DefaultRetention = 30 * 24 * time.Hour
)

// EventPruner deletes durable events older than a cutoff, up to limit rows,
// returning how many were removed.
type EventPruner interface {
	DeleteEventsBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// Result reports one completed sweep.
type Result struct {
	Deleted  int64         `json:"deleted"`
	Batches  int           `json:"batches"`
	Cutoff   time.Time     `json:"cutoff"`
	Duration time.Duration `json:"-"`
}

// Sweeper deletes expired durable events in fixed-size batches.
type Sweeper struct {
	pruner    EventPruner
	logger    *slog.Logger
	metrics   metrics.Recorder
	retention time.Duration
	batchSize int
	interval  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sweeping bool
}

// New creates a Sweeper with the default retention and batch size.
func New(pruner EventPruner, logger *slog.Logger, recorder metrics.Recorder) *Sweeper {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Sweeper{
		pruner:    pruner,
		logger:    logger.With("component", "sweeper"),
		metrics:   recorder,
		retention: DefaultRetention,
		batchSize: DefaultBatchSize,
		interval:  24 * time.Hour,
		now:       time.Now,
	}
}

// SetRetention overrides the retention horizon.
func (s *Sweeper) SetRetention(retention time.Duration) {
	if retention > 0 {
		s.retention = retention
	}
}

// SetBatchSize overrides the per-statement delete limit.
func (s *Sweeper) SetBatchSize(size int) {
	if size > 0 {
		s.batchSize = size
	}
}

// SetInterval overrides the self-scheduling period.
func (s *Sweeper) SetInterval(interval time.Duration) {
	if interval > 0 {
		s.interval = interval
	}
}

// SweepOnce deletes every event older than the retention horizon, batch by
// batch. Safe to call repeatedly: a sweep with nothing to delete is a
// no-op. Concurrent calls are collapsed; the second caller returns an
// empty result immediately.
func (s *Sweeper) SweepOnce(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		s.logger.Info("sweep already in progress, skipping")
		return Result{Cutoff: s.now().Add(-s.retention)}, nil
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	start := s.now()
	cutoff := start.Add(-s.retention)
	result := Result{Cutoff: cutoff}

	for {
		if err := ctx.Err(); err != nil {
			s.metrics.IncSweepRun("failed")
			return result, err
		}

		deleted, err := s.pruner.DeleteEventsBefore(ctx, cutoff, s.batchSize)
		if err != nil {
			s.metrics.IncSweepRun("failed")
			return result, fmt.Errorf("delete batch %d: %w", result.Batches+1, err)
		}
		if deleted == 0 {
			break
		}

		result.Deleted += deleted
		result.Batches++
		s.metrics.AddSweepDeleted(deleted)
	}

	result.Duration = time.Since(start)
	s.metrics.IncSweepRun("success")
	s.logger.Info("sweep complete",
		"deleted", result.Deleted,
		"batches", result.Batches,
		"cutoff", cutoff.UTC().Format(time.RFC3339),
		"duration_ms", result.Duration.Milliseconds(),
	)

	return result, nil
}

// Run sweeps on the configured interval until the context is cancelled.
// A failed sweep is logged and retried on the next tick; it never takes
// the host process down.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("retention sweeper started",
		"retention_days", s.retention.Hours()/24,
		"interval", s.interval.String(),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}
