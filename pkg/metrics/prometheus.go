// Package metrics provides Prometheus metrics for the division sync service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the sync service.
type Manager struct {
	namespace string
	registry  prometheus.Registerer

	// Feed metrics - outbound requests to the league feed.
	fetchesTotal     *prometheus.CounterVec
	fetchLatency     prometheus.Histogram
	rateLimiterWait  prometheus.Histogram
	admissionWaiting prometheus.Gauge

	// Pipeline metrics - stage execution.
	stageDuration    *prometheus.HistogramVec
	stageFailures    *prometheus.CounterVec
	recordsProcessed *prometheus.CounterVec
	touchedTeams     prometheus.Counter
	runsTotal        *prometheus.CounterVec

	// Persistence metrics.
	documentsUpserted *prometheus.CounterVec
	persistenceErrors prometheus.Counter

	// Derived statistics metrics.
	recomputations *prometheus.CounterVec

	// HTTP metrics - the query surface.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry overrides the Prometheus registerer used for registration.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// NewManager creates a Manager and registers all metric families.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "eseadivisions",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.fetchesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "feed",
		Name:      "fetches_total",
		Help:      "Feed fetches by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	m.fetchLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "feed",
		Name:      "fetch_duration_seconds",
		Help:      "Feed fetch latency, excluding time spent waiting for admission.",
		Buckets:   prometheus.DefBuckets,
	})

	m.rateLimiterWait = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "feed",
		Name:      "rate_wait_seconds",
		Help:      "Time spent waiting on the shared token bucket and admission queue.",
		Buckets:   prometheus.DefBuckets,
	})

	m.admissionWaiting = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "feed",
		Name:      "admission_in_flight",
		Help:      "Requests currently holding an admission slot.",
	})

	m.stageDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Wall-clock duration of each pipeline stage.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800},
	}, []string{"stage"})

	m.stageFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "pipeline",
		Name:      "stage_failures_total",
		Help:      "Pipeline stage failures by stage.",
	}, []string{"stage"})

	m.recordsProcessed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "pipeline",
		Name:      "records_processed_total",
		Help:      "Records handled per stage.",
	}, []string{"stage"})

	m.touchedTeams = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "pipeline",
		Name:      "touched_teams_total",
		Help:      "Teams whose standings snapshot changed during sync runs.",
	})

	m.runsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Completed sync runs by mode and outcome.",
	}, []string{"mode", "outcome"})

	m.documentsUpserted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "persistence",
		Name:      "documents_upserted_total",
		Help:      "Document upserts by collection.",
	}, []string{"collection"})

	m.persistenceErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "persistence",
		Name:      "errors_total",
		Help:      "Persistence operation failures.",
	})

	m.recomputations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "stats",
		Name:      "recomputations_total",
		Help:      "Derived statistic recomputations by statistic.",
	}, []string{"statistic"})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint and status code.",
	}, []string{"endpoint", "status"})

	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by endpoint.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	return m
}

var defaultManager *Manager

// Init registers the default metrics manager. It must be called once at
// startup before any Record/Update function.
func Init(opts ...Option) {
	defaultManager = NewManager(opts...)
}

func get() *Manager {
	if defaultManager == nil {
		Init()
	}
	return defaultManager
}

// RecordFetch counts a feed fetch outcome ("ok", "transport", "status", "shape").
func RecordFetch(endpoint, outcome string) {
	get().fetchesTotal.WithLabelValues(endpoint, outcome).Inc()
}

// RecordFetchLatency observes feed fetch latency in seconds.
func RecordFetchLatency(seconds float64) {
	get().fetchLatency.Observe(seconds)
}

// RecordRateWait observes time spent waiting for a token or admission slot.
func RecordRateWait(seconds float64) {
	get().rateLimiterWait.Observe(seconds)
}

// AdmissionAcquired tracks a request entering the admission queue.
func AdmissionAcquired() { get().admissionWaiting.Inc() }

// AdmissionReleased tracks a request leaving the admission queue.
func AdmissionReleased() { get().admissionWaiting.Dec() }

// RecordStageDuration observes the duration of a pipeline stage in seconds.
func RecordStageDuration(stage string, seconds float64) {
	get().stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordStageFailure counts a failed pipeline stage.
func RecordStageFailure(stage string) {
	get().stageFailures.WithLabelValues(stage).Inc()
}

// RecordRecordsProcessed counts records handled by a stage.
func RecordRecordsProcessed(stage string, n int) {
	get().recordsProcessed.WithLabelValues(stage).Add(float64(n))
}

// RecordTouchedTeams counts teams marked as changed during a run.
func RecordTouchedTeams(n int) {
	get().touchedTeams.Add(float64(n))
}

// RecordRun counts a finished sync run by mode and outcome ("ok"/"error").
func RecordRun(mode, outcome string) {
	get().runsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordUpsert counts a document upsert against a collection.
func RecordUpsert(collection string) {
	get().documentsUpserted.WithLabelValues(collection).Inc()
}

// RecordPersistenceError counts a persistence failure.
func RecordPersistenceError() { get().persistenceErrors.Inc() }

// RecordRecomputation counts a derived statistic recomputation
// ("experience_rating" or "schedule_strength").
func RecordRecomputation(statistic string) {
	get().recomputations.WithLabelValues(statistic).Inc()
}

// RecordHTTPRequest counts an HTTP request on the query surface.
func RecordHTTPRequest(endpoint, status string) {
	get().httpRequests.WithLabelValues(endpoint, status).Inc()
}

// RecordHTTPRequestDuration observes query-surface request latency in seconds.
func RecordHTTPRequestDuration(endpoint string, seconds float64) {
	get().httpRequestDuration.WithLabelValues(endpoint).Observe(seconds)
}
