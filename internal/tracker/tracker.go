package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aurelius/pulse/internal/metrics"
	"github.com/aurelius/pulse/internal/model"
)

const (
	// DefaultQueueSize bounds the in-process tracking queue. Overflow drops
	// events rather than growing without limit.
	DefaultQueueSize = 4096

	// DefaultDispatchers is the number of goroutines draining the queue.
	DefaultDispatchers = 4

	// DefaultDispatchTimeout bounds one event's store round trips. A slow
	// store drops the event; it never stalls the caller.
	DefaultDispatchTimeout = 250 * time.Millisecond
)

// HotStore is the hot counter tier the tracker fans events out to.
type HotStore interface {
	IncrementCounters(ctx context.Context, scope model.Scope, event *model.IntegrationEvent) error
}

// StreamPublisher appends events to the durable ingest stream.
type StreamPublisher interface {
	Publish(ctx context.Context, event *model.IntegrationEvent) (string, error)
}

// Tracker accepts integration events from adapters and applies them to both
// tiers. Every entry point is fire-and-forget: a caller's business operation
// never fails or blocks because of the metrics path.
type Tracker struct {
	hot       HotStore
	publisher StreamPublisher
	logger    *slog.Logger
	metrics   metrics.Recorder

	queueSize   int
	dispatchers int
	timeout     time.Duration

	queue   chan *model.IntegrationEvent
	started bool
	mu      sync.RWMutex
	wg      sync.WaitGroup
}

// New creates a Tracker. Call Start before tracking.
func New(hot HotStore, publisher StreamPublisher, logger *slog.Logger, recorder metrics.Recorder) *Tracker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Tracker{
		hot:         hot,
		publisher:   publisher,
		logger:      logger.With("component", "tracker"),
		metrics:     recorder,
		queueSize:   DefaultQueueSize,
		dispatchers: DefaultDispatchers,
		timeout:     DefaultDispatchTimeout,
	}
}

// SetQueueSize overrides the default queue capacity.
func (t *Tracker) SetQueueSize(size int) {
	if size > 0 {
		t.queueSize = size
	}
}

// SetDispatchers overrides the default dispatcher count.
func (t *Tracker) SetDispatchers(n int) {
	if n > 0 {
		t.dispatchers = n
	}
}

// SetDispatchTimeout overrides the default per-event store deadline.
func (t *Tracker) SetDispatchTimeout(timeout time.Duration) {
	if timeout > 0 {
		t.timeout = timeout
	}
}

// Start launches the dispatcher goroutines.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return errors.New("tracker already started")
	}
	t.started = true
	t.queue = make(chan *model.IntegrationEvent, t.queueSize)

	for i := 0; i < t.dispatchers; i++ {
		t.wg.Add(1)
		go t.dispatchLoop()
	}

	t.logger.Info("tracker started",
		"queue_size", t.queueSize,
		"dispatchers", t.dispatchers,
	)
	return nil
}

// Shutdown drains the queue and stops the dispatchers. It implements
// server.ShutdownFunc for integration with graceful shutdown.
func (t *Tracker) Shutdown(ctx context.Context) error {
	// The write lock excludes in-flight Track calls, so closing the queue
	// cannot race a send.
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = false
	close(t.queue)
	t.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		t.logger.Info("tracker shutdown complete")
		return nil
	case <-ctx.Done():
		t.logger.Warn("tracker shutdown timed out")
		return ctx.Err()
	}
}

// Track submits an event for recording. The call never blocks: when the
// queue is full the event is dropped and logged.
func (t *Tracker) Track(event *model.IntegrationEvent) {
	if event == nil {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.started {
		t.logger.Warn("event dropped, tracker not started", "provider", event.Provider)
		t.metrics.IncEventEnqueued("dropped")
		return
	}

	select {
	case t.queue <- event:
		t.metrics.IncEventEnqueued("queued")
	default:
		t.logger.Warn("event dropped, tracking queue full",
			"provider", event.Provider,
			"action", event.Action,
		)
		t.metrics.IncEventEnqueued("dropped")
	}
}

// TrackAPICall records one outbound API call.
func (t *Tracker) TrackAPICall(userID, integrationID, provider, endpoint string, durationMS int64, success bool, errorMessage string) {
	event, err := model.NewAPICallEvent(userID, integrationID, provider, endpoint, durationMS, success, errorMessage)
	if err != nil {
		t.rejectMalformed("api_call", provider, err)
		return
	}
	t.Track(event)
}

// TrackSyncOperation records one sync pass.
func (t *Tracker) TrackSyncOperation(userID, integrationID, provider, syncType string, durationMS, itemsProcessed int64, success bool, syncErrors []string) {
	event, err := model.NewSyncEvent(userID, integrationID, provider, syncType, durationMS, itemsProcessed, success, syncErrors)
	if err != nil {
		t.rejectMalformed("sync", provider, err)
		return
	}
	t.Track(event)
}

// TrackWebhookEvent records one inbound webhook delivery.
func (t *Tracker) TrackWebhookEvent(provider, eventType string, processingMS int64, success bool, errorMessage string) {
	event, err := model.NewWebhookEvent(provider, eventType, processingMS, success, errorMessage)
	if err != nil {
		t.rejectMalformed("webhook", provider, err)
		return
	}
	t.Track(event)
}

// TrackRateLimit records one rate-limit encounter.
func (t *Tracker) TrackRateLimit(userID, integrationID, provider, endpoint string, retryAfterSeconds int64) {
	event, err := model.NewRateLimitEvent(userID, integrationID, provider, endpoint, retryAfterSeconds)
	if err != nil {
		t.rejectMalformed("rate_limit", provider, err)
		return
	}
	t.Track(event)
}

// rejectMalformed logs a construction failure. Malformed events are never
// partially recorded.
func (t *Tracker) rejectMalformed(kind, provider string, err error) {
	t.logger.Warn("rejected malformed event",
		"kind", kind,
		"provider", provider,
		"error", err,
	)
	t.metrics.IncEventEnqueued("rejected")
}

func (t *Tracker) dispatchLoop() {
	defer t.wg.Done()
	for event := range t.queue {
		t.dispatch(event)
	}
}

// dispatch applies one event to the hot tier for every scope it belongs to,
// then publishes it toward the durable log. Store failures are logged and
// absorbed here; they must not reach the caller whose action produced the
// event.
func (t *Tracker) dispatch(event *model.IntegrationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	start := time.Now()
	for _, scope := range model.ScopesFor(event) {
		if err := t.hot.IncrementCounters(ctx, scope, event); err != nil {
			t.logger.Warn("hot-tier increment failed",
				"scope", string(scope),
				"provider", event.Provider,
				"error", err,
			)
		}
	}
	t.metrics.ObserveTrackDuration(time.Since(start))

	if _, err := t.publisher.Publish(ctx, event); err != nil {
		t.logger.Warn("durable publish failed, event dropped from cold tier",
			"provider", event.Provider,
			"action", event.Action,
			"error", err,
		)
		t.metrics.IncEventPublished("dropped")
		return
	}
	t.metrics.IncEventPublished("success")
}
