package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncEventEnqueued is a no-op.
func (n *NoopRecorder) IncEventEnqueued(status string) {}

// ObserveTrackDuration is a no-op.
func (n *NoopRecorder) ObserveTrackDuration(duration time.Duration) {}

// IncEventPublished is a no-op.
func (n *NoopRecorder) IncEventPublished(status string) {}

// IncEventProcessed is a no-op.
func (n *NoopRecorder) IncEventProcessed(status string) {}

// ObserveIngestBatchSize is a no-op.
func (n *NoopRecorder) ObserveIngestBatchSize(size int) {}

// ObserveIngestBatchDuration is a no-op.
func (n *NoopRecorder) ObserveIngestBatchDuration(duration time.Duration) {}

// SetIngestQueueDepth is a no-op.
func (n *NoopRecorder) SetIngestQueueDepth(depth int64) {}

// ObserveIngestLag is a no-op.
func (n *NoopRecorder) ObserveIngestLag(lag time.Duration) {}

// IncQueryServed is a no-op.
func (n *NoopRecorder) IncQueryServed(kind, status string) {}

// ObserveQueryDuration is a no-op.
func (n *NoopRecorder) ObserveQueryDuration(kind string, duration time.Duration) {}

// IncSweepRun is a no-op.
func (n *NoopRecorder) IncSweepRun(status string) {}

// AddSweepDeleted is a no-op.
func (n *NoopRecorder) AddSweepDeleted(count int64) {}
