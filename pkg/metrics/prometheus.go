// Package metrics provides Prometheus metrics for the family league tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the tracker.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	fetchBuckets   []float64
	constLabels    map[string]string
	metricPrefix   string
	registry       prometheus.Registerer

	// Collection
	snapshotsWritten prometheus.Counter
	fetchOutcomes    *prometheus.CounterVec
	fetchLatency     prometheus.Histogram

	// Storage
	storeOps         *prometheus.CounterVec
	storeLatency     *prometheus.HistogramVec
	snapshotsPruned  prometheus.Counter
	migrationsCopied prometheus.Counter

	// Reports
	reportsGenerated   *prometheus.CounterVec
	leaderboardSize    prometheus.Gauge
	lowConfidenceUsers prometheus.Gauge
	missingUsers       prometheus.Gauge
	reportDuration     prometheus.Histogram
	emailsSent         *prometheus.CounterVec

	// Resilience
	circuitBreakerState *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "league",
		subsystem:      "tracker",
		latencyBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		fetchBuckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		constLabels:    make(map[string]string),
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.snapshotsWritten = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("snapshots_written_total"),
		Help:        "Total number of snapshots persisted",
		ConstLabels: labels,
	})

	m.fetchOutcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("profile_fetch_total"),
		Help:        "Profile fetches by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.fetchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("profile_fetch_latency_milliseconds"),
		Help:        "Histogram of profile fetch latency in milliseconds",
		Buckets:     m.fetchBuckets,
		ConstLabels: labels,
	})

	m.storeOps = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("store_operations_total"),
		Help:        "Snapshot store operations by backend, operation and outcome",
		ConstLabels: labels,
	}, []string{"backend", "op", "outcome"})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("store_latency_milliseconds"),
		Help:        "Snapshot store operation latency in milliseconds",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	}, []string{"backend", "op"})

	m.snapshotsPruned = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("snapshots_pruned_total"),
		Help:        "Total number of snapshots removed by retention",
		ConstLabels: labels,
	})

	m.migrationsCopied = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("migration_snapshots_copied_total"),
		Help:        "Total number of snapshots copied between backends",
		ConstLabels: labels,
	})

	m.reportsGenerated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("reports_generated_total"),
		Help:        "Reports assembled by period",
		ConstLabels: labels,
	}, []string{"period"})

	m.leaderboardSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("leaderboard_size"),
		Help:        "Number of ranked users in the last report",
		ConstLabels: labels,
	})

	m.lowConfidenceUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("low_confidence_users"),
		Help:        "Users whose weekly window had fewer than seven days of data in the last report",
		ConstLabels: labels,
	})

	m.missingUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("missing_users"),
		Help:        "Users without data in the last report",
		ConstLabels: labels,
	})

	m.reportDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("report_build_duration_milliseconds"),
		Help:        "Time spent computing deltas and assembling a report",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	})

	m.emailsSent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("emails_total"),
		Help:        "Report emails by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.circuitBreakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("circuit_breaker_state"),
		Help:        "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		ConstLabels: labels,
	}, []string{"name"})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.latencyBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_component_total"),
		Help:        "Errors by component and error type",
		ConstLabels: labels,
	}, []string{"component", "error_type"})
}

// RecordSnapshotWritten increments the persisted snapshot counter.
func RecordSnapshotWritten() {
	globalManager.snapshotsWritten.Inc()
}

// RecordFetch records a profile fetch outcome and its latency.
func RecordFetch(outcome string, latencyMs float64) {
	globalManager.fetchOutcomes.WithLabelValues(outcome).Inc()
	globalManager.fetchLatency.Observe(latencyMs)
}

// RecordStoreOperation records a store call by backend, op and outcome.
func RecordStoreOperation(backend, op, outcome string, latencyMs float64) {
	globalManager.storeOps.WithLabelValues(backend, op, outcome).Inc()
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

// RecordSnapshotsPruned adds n to the pruned snapshot counter.
func RecordSnapshotsPruned(n int) {
	if n > 0 {
		globalManager.snapshotsPruned.Add(float64(n))
	}
}

// RecordMigrationCopied adds n to the migrated snapshot counter.
func RecordMigrationCopied(n int) {
	if n > 0 {
		globalManager.migrationsCopied.Add(float64(n))
	}
}

// RecordReport records a generated report and its headline gauges.
func RecordReport(period string, ranked, lowConfidence, missing int, durationMs float64) {
	globalManager.reportsGenerated.WithLabelValues(period).Inc()
	globalManager.leaderboardSize.Set(float64(ranked))
	globalManager.lowConfidenceUsers.Set(float64(lowConfidence))
	globalManager.missingUsers.Set(float64(missing))
	globalManager.reportDuration.Observe(durationMs)
}

// RecordEmail records an email delivery outcome.
func RecordEmail(outcome string) {
	globalManager.emailsSent.WithLabelValues(outcome).Inc()
}

// UpdateCircuitBreakerState sets the breaker state gauge for name.
func UpdateCircuitBreakerState(name string, state float64) {
	globalManager.circuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent increments the error counter for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
