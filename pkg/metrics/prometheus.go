// Package metrics provides Prometheus metrics for the riskwatch service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default bucket layouts.
var (
	defaultLatencyBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500} //nolint:gochecknoglobals // bucket layout
	riskScoreBuckets      = prometheus.LinearBuckets(0.1, 0.1, 10)                    //nolint:gochecknoglobals // bucket layout
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Assessment metrics
	assessments       *prometheus.CounterVec
	assessmentErrors  *prometheus.CounterVec
	assessmentLatency prometheus.Histogram
	riskScore         *prometheus.HistogramVec
	riskFactors       *prometheus.CounterVec
	modelsLoaded      prometheus.Gauge

	// Store metrics
	profilesTotal    prometheus.Gauge
	assessmentsTotal prometheus.Gauge
	storeLatency     *prometheus.HistogramVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Batch, queue and worker metrics
	batches           *prometheus.CounterVec
	queueCapacity     prometheus.Gauge
	queueSize         prometheus.Gauge
	queueUtilization  prometheus.Gauge
	queueEnqueued     prometheus.Counter
	queueDequeued     prometheus.Counter
	queueEnqueueErrs  *prometheus.CounterVec
	workerCount       prometheus.Gauge
	workerJobs        *prometheus.CounterVec
	workerJobDuration prometheus.Histogram

	// Error taxonomy
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Private registry so /metrics only exposes what the service defines.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "riskwatch",
		subsystem:      "engine",
		latencyBuckets: defaultLatencyBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
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

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.assessments = m.counterVec("assessments_total",
		"Completed risk assessments by overall level and intervention pattern", "level", "pattern")
	m.assessmentErrors = m.counterVec("assessment_errors_total",
		"Failed risk assessments by reason", "reason")
	m.assessmentLatency = m.histogram("assessment_latency_milliseconds",
		"End-to-end latency of a single assessment", m.latencyBuckets)
	m.riskScore = m.histogramVec("risk_score",
		"Distribution of predicted risk scores per window", riskScoreBuckets, "window")
	m.riskFactors = m.counterVec("risk_factors_total",
		"Risk factors identified across assessments", "factor")
	m.modelsLoaded = m.gauge("models_loaded",
		"1 when trained models were loaded from file, 0 when the fallback models are active")

	m.profilesTotal = m.gauge("profiles_total", "Behaviour profiles known to the service")
	m.assessmentsTotal = m.gauge("assessments_stored", "Assessments persisted in the assessment store")
	m.storeLatency = m.histogramVec("store_operation_latency_milliseconds",
		"Latency of assessment store operations", m.latencyBuckets, "operation")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status code", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration", m.latencyBuckets, "endpoint", "method", "status_code")

	m.batches = m.counterVec("batches_total", "Batch submissions by outcome", "status")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the batch job queue")
	m.queueSize = m.gauge("queue_size", "Jobs waiting in the batch job queue")
	m.queueUtilization = m.gauge("queue_utilization", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs accepted by the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Jobs handed to workers")
	m.queueEnqueueErrs = m.counterVec("queue_enqueue_errors_total", "Rejected enqueue attempts by reason", "reason")
	m.workerCount = m.gauge("worker_count", "Workers in the batch pool")
	m.workerJobs = m.counterVec("worker_jobs_total", "Jobs processed by workers by outcome", "outcome")
	m.workerJobDuration = m.histogram("worker_job_duration_milliseconds",
		"Time a worker spends on one job", m.latencyBuckets)

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")
	m.errorsByEndpoint = m.counterVec("endpoint_errors_total",
		"HTTP error responses by endpoint, method and type", "endpoint", "method", "type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100})
}

// RecordAssessment counts a completed assessment.
func RecordAssessment(level, pattern string) {
	globalManager.assessments.WithLabelValues(level, pattern).Inc()
}

// RecordAssessmentError counts a failed assessment.
func RecordAssessmentError(reason string) {
	globalManager.assessmentErrors.WithLabelValues(reason).Inc()
}

// RecordAssessmentLatency records assessment latency in milliseconds.
func RecordAssessmentLatency(latencyMs float64) {
	globalManager.assessmentLatency.Observe(latencyMs)
}

// RecordRiskScore records one predicted score for a window ("7_day", "30_day").
func RecordRiskScore(window string, score float64) {
	globalManager.riskScore.WithLabelValues(window).Observe(score)
}

// RecordRiskFactor counts an identified risk factor.
func RecordRiskFactor(factor string) {
	globalManager.riskFactors.WithLabelValues(factor).Inc()
}

// SetModelsLoaded reports whether trained models are active.
func SetModelsLoaded(loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	globalManager.modelsLoaded.Set(v)
}

// UpdateProfilesTotal sets the number of known behaviour profiles.
func UpdateProfilesTotal(count int) {
	globalManager.profilesTotal.Set(float64(count))
}

// UpdateAssessmentsStored sets the number of stored assessments.
func UpdateAssessmentsStored(count int) {
	globalManager.assessmentsTotal.Set(float64(count))
}

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordBatch counts a batch submission outcome (accepted, duplicate, rejected).
func RecordBatch(status string) {
	globalManager.batches.WithLabelValues(status).Inc()
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a job handed to a worker.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrs.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of pool workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerJob counts a processed job by outcome and records its duration.
func RecordWorkerJob(outcome string, durationMs float64) {
	globalManager.workerJobs.WithLabelValues(outcome).Inc()
	globalManager.workerJobDuration.Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
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

// GetRegistry returns the registry backing /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
