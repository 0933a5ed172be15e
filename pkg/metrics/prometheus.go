// Package metrics provides Prometheus metrics for the coachlens service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the coachlens service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Risk pipeline
	studentsEvaluated     prometheus.Counter
	evaluationLatency     prometheus.Histogram
	studentsByTier        *prometheus.GaugeVec
	studentsTracked       prometheus.Gauge
	tierTransitions       *prometheus.CounterVec
	snapshotsCaptured     prometheus.Counter
	snapshotsDuplicate    prometheus.Counter
	interventionsRecorded prometheus.Counter
	aggregationLatency    *prometheus.HistogramVec

	// Ingest queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Storage and cache
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
	cacheResults *prometheus.CounterVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "coachlens",
		subsystem:        "dri",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      map[string]string{},
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.studentsEvaluated = m.counter("students_evaluated_total", "Total number of student evaluations")
	m.evaluationLatency = m.histogram("evaluation_latency_milliseconds", "Latency of a single student evaluation in milliseconds")
	m.studentsByTier = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "students_by_tier",
		Help: "Number of students currently in each tier", ConstLabels: m.constLabels,
	}, []string{"tier"})
	m.studentsTracked = m.gauge("students_tracked", "Number of students with a stored evaluation")
	m.tierTransitions = m.counterVec("tier_transitions_total", "Tier changes between consecutive evaluations", "from", "to")
	m.snapshotsCaptured = m.counter("snapshots_captured_total", "Snapshots appended to history")
	m.snapshotsDuplicate = m.counter("snapshots_duplicate_total", "Snapshots skipped because one exists for the day")
	m.interventionsRecorded = m.counter("interventions_recorded_total", "Interventions recorded")
	m.aggregationLatency = m.histogramVec("aggregation_latency_milliseconds", "Latency of analytics aggregations", "kind")

	m.queueSize = m.gauge("queue_size", "Current number of queued ingest jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the ingest queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Jobs rejected by the queue")

	m.workerCount = m.gauge("worker_count", "Number of ingest workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently processing a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time to process one ingest job")
	m.workerErrors = m.counter("worker_errors_total", "Jobs that failed in a worker")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Store operation failures", "op")
	m.cacheResults = m.counterVec("cache_results_total", "Cache lookups by outcome", "cache", "result")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")
}

// RecordStudentEvaluated counts an evaluation and its latency.
func RecordStudentEvaluated(latencyMs float64) {
	globalManager.studentsEvaluated.Inc()
	globalManager.evaluationLatency.Observe(latencyMs)
}

// UpdateTierCounts replaces the per-tier gauges.
func UpdateTierCounts(counts map[string]int) {
	for tier, n := range counts {
		globalManager.studentsByTier.WithLabelValues(tier).Set(float64(n))
	}
}

// UpdateStudentsTracked sets the number of stored students.
func UpdateStudentsTracked(n int) { globalManager.studentsTracked.Set(float64(n)) }

// RecordTierTransition counts a student moving between tiers.
func RecordTierTransition(from, to string) {
	globalManager.tierTransitions.WithLabelValues(from, to).Inc()
}

// RecordSnapshotCaptured increments the snapshot counter.
func RecordSnapshotCaptured() { globalManager.snapshotsCaptured.Inc() }

// RecordSnapshotDuplicate increments the skipped snapshot counter.
func RecordSnapshotDuplicate() { globalManager.snapshotsDuplicate.Inc() }

// RecordInterventionRecorded increments the intervention counter.
func RecordInterventionRecorded() { globalManager.interventionsRecorded.Inc() }

// RecordAggregationLatency observes an analytics aggregation.
func RecordAggregationLatency(kind string, latencyMs float64) {
	globalManager.aggregationLatency.WithLabelValues(kind).Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// AddWorkerActive adjusts the number of busy workers.
func AddWorkerActive(delta int) { globalManager.workerActiveCount.Add(float64(delta)) }

// RecordWorkerProcessingLatency observes one job's processing time.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordStoreOperation observes a store call and counts failures.
func RecordStoreOperation(op string, latencyMs float64, err error) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
	if err != nil {
		globalManager.storeErrors.WithLabelValues(op).Inc()
	}
}

// RecordCacheResult counts a cache hit or miss.
func RecordCacheResult(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.cacheResults.WithLabelValues(cache, result).Inc()
}

// RecordError counts an error against a component.
func RecordError(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
