package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromRecorder exposes engine metrics through a Prometheus registry.
type PromRecorder struct {
	eventsEnqueued  *prometheus.CounterVec
	trackDuration   prometheus.Histogram
	eventsPublished *prometheus.CounterVec

	eventsProcessed     *prometheus.CounterVec
	ingestBatchSize     prometheus.Histogram
	ingestBatchDuration prometheus.Histogram
	ingestQueueDepth    prometheus.Gauge
	ingestLag           prometheus.Histogram

	queriesServed *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec

	sweepRuns    *prometheus.CounterVec
	sweepDeleted prometheus.Counter
}

// NewProm creates a Recorder registered against the given registry.
// Passing a fresh registry per test keeps collectors isolated.
func NewProm(reg prometheus.Registerer) *PromRecorder {
	factory := promauto.With(reg)

	return &PromRecorder{
		eventsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Subsystem: "tracker",
			Name:      "events_enqueued_total",
			Help:      "Events submitted to the tracking queue by outcome",
		}, []string{"status"}),
		trackDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pulse",
			Subsystem: "tracker",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of hot-tier fan-out per event",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Subsystem: "tracker",
			Name:      "events_published_total",
			Help:      "Events published to the durable ingest stream by outcome",
		}, []string{"status"}),
		eventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Subsystem: "ingest",
			Name:      "events_processed_total",
			Help:      "Events drained from the ingest stream by outcome",
		}, []string{"status"}),
		ingestBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pulse",
			Subsystem: "ingest",
			Name:      "batch_size",
			Help:      "Events per durable insert batch",
			Buckets:   []float64{1, 10, 50, 100, 250, 500},
		}),
		ingestBatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pulse",
			Subsystem: "ingest",
			Name:      "batch_duration_seconds",
			Help:      "Duration of durable insert batches",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		ingestQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pulse",
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Pending plus unread entries in the ingest stream",
		}),
		ingestLag: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pulse",
			Subsystem: "ingest",
			Name:      "lag_seconds",
			Help:      "Delay between event occurrence and durable insert",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		queriesServed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Subsystem: "query",
			Name:      "served_total",
			Help:      "Metrics queries served by kind and outcome",
		}, []string{"kind", "status"}),
		queryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pulse",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Duration of metrics queries by kind",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"kind"}),
		sweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Retention sweep runs by outcome",
		}, []string{"status"}),
		sweepDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pulse",
			Subsystem: "sweeper",
			Name:      "deleted_total",
			Help:      "Durable records deleted by retention sweeps",
		}),
	}
}

// IncEventEnqueued counts a tracking queue submission.
func (p *PromRecorder) IncEventEnqueued(status string) {
	p.eventsEnqueued.WithLabelValues(status).Inc()
}

// ObserveTrackDuration records hot-tier fan-out duration.
func (p *PromRecorder) ObserveTrackDuration(duration time.Duration) {
	p.trackDuration.Observe(duration.Seconds())
}

// IncEventPublished counts a durable stream publish.
func (p *PromRecorder) IncEventPublished(status string) {
	p.eventsPublished.WithLabelValues(status).Inc()
}

// IncEventProcessed counts an ingest worker outcome.
func (p *PromRecorder) IncEventProcessed(status string) {
	p.eventsProcessed.WithLabelValues(status).Inc()
}

// ObserveIngestBatchSize records events per insert batch.
func (p *PromRecorder) ObserveIngestBatchSize(size int) {
	p.ingestBatchSize.Observe(float64(size))
}

// ObserveIngestBatchDuration records insert batch duration.
func (p *PromRecorder) ObserveIngestBatchDuration(duration time.Duration) {
	p.ingestBatchDuration.Observe(duration.Seconds())
}

// SetIngestQueueDepth records the ingest stream backlog.
func (p *PromRecorder) SetIngestQueueDepth(depth int64) {
	p.ingestQueueDepth.Set(float64(depth))
}

// ObserveIngestLag records occurrence-to-insert delay.
func (p *PromRecorder) ObserveIngestLag(lag time.Duration) {
	p.ingestLag.Observe(lag.Seconds())
}

// IncQueryServed counts a served metrics query.
func (p *PromRecorder) IncQueryServed(kind, status string) {
	p.queriesServed.WithLabelValues(kind, status).Inc()
}

// ObserveQueryDuration records a metrics query duration.
func (p *PromRecorder) ObserveQueryDuration(kind string, duration time.Duration) {
	p.queryDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// IncSweepRun counts a retention sweep run.
func (p *PromRecorder) IncSweepRun(status string) {
	p.sweepRuns.WithLabelValues(status).Inc()
}

// AddSweepDeleted counts records deleted by sweeps.
func (p *PromRecorder) AddSweepDeleted(count int64) {
	p.sweepDeleted.Add(float64(count))
}
