// Package metrics provides Prometheus metrics for the flickrank service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the flickrank service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Session lifecycle
	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	sessionsAborted   prometheus.Counter
	sessionsReaped    prometheus.Counter
	activeSessions    prometheus.Gauge
	roundsTotal       *prometheus.CounterVec
	finalRatings      prometheus.Histogram

	// Persistence
	persistenceFailures prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryRecordsTotal     prometheus.Gauge
	repositoryItemsPerCategory *prometheus.GaugeVec
	repositoryUpdateLatency    prometheus.Histogram
	repositoryQueryLatency     prometheus.Histogram

	// Write queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Writer
	writerLatency prometheus.Histogram
	writerErrors  prometheus.Counter

	errorRateByComponent *prometheus.CounterVec
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
		namespace:        "flickrank",
		subsystem:        "rating",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.sessionsStarted = m.counter("sessions_started_total", "Total number of rating sessions started")
	m.sessionsCompleted = m.counterVec("sessions_completed_total", "Completed sessions by stop reason", "stop_reason")
	m.sessionsAborted = m.counter("sessions_aborted_total", "Total number of sessions aborted by the caller or on invalid input")
	m.sessionsReaped = m.counter("sessions_reaped_total", "Total number of idle sessions removed by the reaper")
	m.activeSessions = m.gauge("active_sessions", "Sessions currently registered")
	m.roundsTotal = m.counterVec("rounds_total", "Committed comparison rounds by outcome", "outcome")
	m.finalRatings = m.histogram("final_rating", "Distribution of final ratings", prometheus.LinearBuckets(1, 1, 10))

	m.persistenceFailures = m.counter("persistence_failures_total", "Opponent rating writes that could not be persisted")

	auto := promauto.With(m.registry)
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.repositoryRecordsTotal = m.gauge("repository_records_total", "Rated items across all categories")
	m.repositoryItemsPerCategory = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repository_items",
		Help:      "Rated items per category",
	}, []string{"category"})
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Corpus write latency in milliseconds", m.histogramBuckets)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Corpus read latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("write_queue_size", "Durable writes waiting in the queue")
	m.queueCapacity = m.gauge("write_queue_capacity", "Capacity of the durable write queue")
	m.queueUtilization = m.gauge("write_queue_utilization", "Fraction of the write queue in use")
	m.queueEnqueueRate = m.counter("write_queue_enqueued_total", "Durable writes enqueued")
	m.queueDequeueRate = m.counter("write_queue_dequeued_total", "Durable writes dequeued")
	m.queueEnqueueErrors = m.counter("write_queue_enqueue_errors_total", "Durable writes rejected by a full or closed queue")

	m.writerLatency = m.histogram("writer_latency_milliseconds", "Time to apply one durable write", m.histogramBuckets)
	m.writerErrors = m.counter("writer_errors_total", "Durable writes the store rejected")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and error type", "component", "error_type")
}

// Session metrics.

// RecordSessionStarted increments the started sessions counter.
func RecordSessionStarted() { globalManager.sessionsStarted.Inc() }

// RecordSessionCompleted counts a completed session and observes its rating.
func RecordSessionCompleted(stopReason string, finalRating float64) {
	globalManager.sessionsCompleted.WithLabelValues(stopReason).Inc()
	globalManager.finalRatings.Observe(finalRating)
}

// RecordSessionAborted increments the aborted sessions counter.
func RecordSessionAborted() { globalManager.sessionsAborted.Inc() }

// RecordSessionsReaped adds n reaped sessions.
func RecordSessionsReaped(n int) { globalManager.sessionsReaped.Add(float64(n)) }

// UpdateActiveSessions sets the number of registered sessions.
func UpdateActiveSessions(n int) { globalManager.activeSessions.Set(float64(n)) }

// RecordRound counts one committed round.
func RecordRound(outcome string) { globalManager.roundsTotal.WithLabelValues(outcome).Inc() }

// RecordPersistenceFailure counts one failed opponent write.
func RecordPersistenceFailure() { globalManager.persistenceFailures.Inc() }

// HTTP metrics.

// RecordHTTPRequest records an HTTP request with endpoint, method, and status code.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository metrics.

// UpdateRepositoryRecordsTotal sets the total number of rated items.
func UpdateRepositoryRecordsTotal(count int) {
	globalManager.repositoryRecordsTotal.Set(float64(count))
}

// UpdateRepositoryItemsPerCategory sets the item count of one category.
func UpdateRepositoryItemsPerCategory(category string, count int) {
	globalManager.repositoryItemsPerCategory.WithLabelValues(category).Set(float64(count))
}

// RecordRepositoryUpdateLatency records repository update latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository query latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization percentage.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// Writer metrics.

// RecordWriterLatency records the time spent applying one durable write.
func RecordWriterLatency(latencyMs float64) { globalManager.writerLatency.Observe(latencyMs) }

// RecordWriterError increments the writer error counter.
func RecordWriterError() { globalManager.writerErrors.Inc() }

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
