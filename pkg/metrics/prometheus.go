// Package metrics provides Prometheus metrics for the flight-risk service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Analysis runs
	runsStarted      prometheus.Counter
	runsCompleted    prometheus.Counter
	runsFailed       prometheus.Counter
	runsSuperseded   prometheus.Counter
	runDuration      prometheus.Histogram
	lastRunUnix      prometheus.Gauge
	peopleConsidered prometheus.Gauge
	peopleEligible   prometheus.Gauge
	exclusions       *prometheus.CounterVec
	assessments      *prometheus.GaugeVec

	// Scorer
	scoringLatency prometheus.Histogram
	scoringErrors  *prometheus.CounterVec

	// Trigger queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "flightrisk",
		subsystem:        "engine",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.runsStarted = m.counter("runs_started_total", "Total number of analysis runs started")
	m.runsCompleted = m.counter("runs_completed_total", "Total number of analysis runs that published a result")
	m.runsFailed = m.counter("runs_failed_total", "Total number of analysis runs that failed before publishing")
	m.runsSuperseded = m.counter("runs_superseded_total", "Total number of completed runs discarded because a newer run already published")
	m.runDuration = m.histogram("run_duration_milliseconds", "Analysis run duration in milliseconds", m.histogramBuckets)
	m.lastRunUnix = m.gauge("last_run_unix", "Unix timestamp of the last published analysis run")
	m.peopleConsidered = m.gauge("people_considered", "People present in the dataset of the last published run")
	m.peopleEligible = m.gauge("people_eligible", "People that passed the eligibility gate in the last published run")
	m.exclusions = m.counterVec("exclusions_total", "People excluded from a run by reason", "reason")
	m.assessments = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("assessments"),
		Help:        "Assessments per risk level in the last published run",
		ConstLabels: m.customLabels,
	}, []string{"level"})

	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Latency of a single scorer request in milliseconds", m.histogramBuckets)
	m.scoringErrors = m.counterVec("scoring_errors_total", "Scorer requests that produced no assessment, by kind", "kind")

	m.queueSize = m.gauge("queue_size", "Current number of pending analysis triggers")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of pending analysis triggers")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Trigger queue utilization ratio (size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of triggers enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of triggers dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected triggers")

	m.workerCount = m.gauge("worker_count", "Number of analysis workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time a worker spent on one trigger in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of triggers whose run failed")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("error_latency_milliseconds"),
		Help:        "Latency of operations that resulted in errors",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Analysis run metrics.

// RecordRunStarted increments the started runs counter.
func RecordRunStarted() {
	globalManager.runsStarted.Inc()
}

// RecordRunCompleted records a published run and its duration.
func RecordRunCompleted(durationMs float64) {
	globalManager.runsCompleted.Inc()
	globalManager.runDuration.Observe(durationMs)
	globalManager.lastRunUnix.Set(float64(time.Now().Unix()))
}

// RecordRunFailed increments the failed runs counter.
func RecordRunFailed() {
	globalManager.runsFailed.Inc()
}

// RecordRunSuperseded increments the superseded runs counter.
func RecordRunSuperseded() {
	globalManager.runsSuperseded.Inc()
}

// UpdatePeopleConsidered sets the dataset size of the last published run.
func UpdatePeopleConsidered(count int) {
	globalManager.peopleConsidered.Set(float64(count))
}

// UpdatePeopleEligible sets the eligible count of the last published run.
func UpdatePeopleEligible(count int) {
	globalManager.peopleEligible.Set(float64(count))
}

// RecordExclusion counts a person excluded from a run.
func RecordExclusion(reason string) {
	globalManager.exclusions.WithLabelValues(reason).Inc()
}

// UpdateAssessments sets the per-level assessment gauge.
func UpdateAssessments(level string, count int) {
	globalManager.assessments.WithLabelValues(level).Set(float64(count))
}

// Scorer metrics.

// RecordScoringLatency records the latency of one scorer request in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordScoringError counts a scorer request that produced no assessment.
func RecordScoringError(kind string) {
	globalManager.scoringErrors.WithLabelValues(kind).Inc()
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker metrics.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records the time spent on one trigger.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
