// Package metrics provides lightweight hooks for instrumenting the
// telemetry engine itself.
package metrics

import "time"

// Recorder captures metric events for the engine's own health, as opposed
// to the integration counters it aggregates for callers.
type Recorder interface {
	// Tracking pipeline
	IncEventEnqueued(status string) // status: "queued" or "dropped"
	ObserveTrackDuration(duration time.Duration)
	IncEventPublished(status string) // status: "success" or "dropped"

	// Ingest worker
	IncEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveIngestBatchSize(size int)
	ObserveIngestBatchDuration(duration time.Duration)
	SetIngestQueueDepth(depth int64)
	ObserveIngestLag(lag time.Duration)

	// Query path
	IncQueryServed(kind, status string) // kind: "provider", "user", "system", "top_errors"
	ObserveQueryDuration(kind string, duration time.Duration)

	// Retention sweeper
	IncSweepRun(status string) // status: "success" or "failed"
	AddSweepDeleted(count int64)
}
