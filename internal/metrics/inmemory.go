package metrics

import (
	"sync"
	"time"
)

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu sync.Mutex

	eventsEnqueued  map[string]int64
	eventsPublished map[string]int64
	eventsProcessed map[string]int64
	queriesServed   map[string]int64
	sweepRuns       map[string]int64
	trackObserved   int64
	queueDepth      int64
	sweepDeleted    int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		eventsEnqueued:  make(map[string]int64),
		eventsPublished: make(map[string]int64),
		eventsProcessed: make(map[string]int64),
		queriesServed:   make(map[string]int64),
		sweepRuns:       make(map[string]int64),
	}
}

// EventsEnqueued returns the enqueue count for a status.
func (m *InMemoryRecorder) EventsEnqueued(status string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventsEnqueued[status]
}

// EventsPublished returns the publish count for a status.
func (m *InMemoryRecorder) EventsPublished(status string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventsPublished[status]
}

// EventsProcessed returns the processed count for a status.
func (m *InMemoryRecorder) EventsProcessed(status string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventsProcessed[status]
}

// QueriesServed returns the served count for a kind/status pair.
func (m *InMemoryRecorder) QueriesServed(kind, status string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queriesServed[kind+":"+status]
}

// SweepRuns returns the sweep run count for a status.
func (m *InMemoryRecorder) SweepRuns(status string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepRuns[status]
}

// SweepDeleted returns the total deleted record count.
func (m *InMemoryRecorder) SweepDeleted() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepDeleted
}

// QueueDepth returns the last recorded queue depth.
func (m *InMemoryRecorder) QueueDepth() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueDepth
}

// IncEventEnqueued increments the enqueue counter.
func (m *InMemoryRecorder) IncEventEnqueued(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsEnqueued[status]++
}

// ObserveTrackDuration counts fan-out observations.
func (m *InMemoryRecorder) ObserveTrackDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackObserved++
}

// IncEventPublished increments the publish counter.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsPublished[status]++
}

// IncEventProcessed increments the processed counter.
func (m *InMemoryRecorder) IncEventProcessed(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsProcessed[status]++
}

// ObserveIngestBatchSize is recorded but not retained.
func (m *InMemoryRecorder) ObserveIngestBatchSize(size int) {}

// ObserveIngestBatchDuration is recorded but not retained.
func (m *InMemoryRecorder) ObserveIngestBatchDuration(duration time.Duration) {}

// SetIngestQueueDepth stores the latest queue depth.
func (m *InMemoryRecorder) SetIngestQueueDepth(depth int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth = depth
}

// ObserveIngestLag is recorded but not retained.
func (m *InMemoryRecorder) ObserveIngestLag(lag time.Duration) {}

// IncQueryServed increments the served counter.
func (m *InMemoryRecorder) IncQueryServed(kind, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queriesServed[kind+":"+status]++
}

// ObserveQueryDuration is recorded but not retained.
func (m *InMemoryRecorder) ObserveQueryDuration(kind string, duration time.Duration) {}

// IncSweepRun increments the sweep run counter.
func (m *InMemoryRecorder) IncSweepRun(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepRuns[status]++
}

// AddSweepDeleted adds to the deleted record counter.
func (m *InMemoryRecorder) AddSweepDeleted(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepDeleted += count
}
