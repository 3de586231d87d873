// Package metrics provides Prometheus metrics for the fairway recommendation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every metric of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Recommendation engine
	recommendations        *prometheus.CounterVec
	recommendationLatency  prometheus.Histogram
	candidatesRanked       prometheus.Histogram
	reviewsExamined        prometheus.Histogram
	lowConfidenceResults   prometheus.Counter
	invalidReviewData      prometheus.Counter
	candidatesFilteredOut  prometheus.Counter
	catalogClubs           prometheus.Gauge
	catalogProfiles        prometheus.Gauge
	catalogReviews         prometheus.Gauge

	// Review ingestion
	reviewSubmissions *prometheus.CounterVec
	reviewsPersisted  prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerActiveCount       prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Store and cache
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	storeRetries      *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	cacheErrors       *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRateLimited     *prometheus.CounterVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
	uptimeSeconds        prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fairway",
		subsystem:        "recommend",
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

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	latencyMs := []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}
	sizes := prometheus.ExponentialBuckets(1, 2, 12)

	m.recommendations = m.counterVec("requests_total", "Recommendation requests by outcome", "outcome")
	m.recommendationLatency = m.histogram("latency_ms", "End-to-end recommendation latency in milliseconds", latencyMs)
	m.candidatesRanked = m.histogram("candidates_ranked", "Candidates ranked per request", sizes)
	m.reviewsExamined = m.histogram("reviews_examined", "Reviews weighted per request", sizes)
	m.lowConfidenceResults = m.counter("low_confidence_results_total", "Results returned with low confidence")
	m.invalidReviewData = m.counter("invalid_review_data_total", "Ranking calls rejected because of out-of-range ratings")
	m.candidatesFilteredOut = m.counter("candidates_filtered_out_total", "Candidates removed by filter expressions")
	m.catalogClubs = m.gauge("catalog_clubs", "Clubs in the catalog")
	m.catalogProfiles = m.gauge("catalog_profiles", "Reviewer profiles in the catalog")
	m.catalogReviews = m.gauge("catalog_reviews", "Reviews in the catalog")

	m.reviewSubmissions = m.counterVec("review_submissions_total", "Review submissions by outcome", "outcome")
	m.reviewsPersisted = m.counter("reviews_persisted_total", "Reviews written by ingestion workers")

	m.queueSize = m.gauge("queue_size", "Submissions waiting in the ingestion queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the ingestion queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Ingestion queue fill ratio")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Submissions enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Submissions dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Failed enqueues by reason", "reason")

	m.workerActiveCount = m.gauge("workers_active", "Running ingestion workers")
	m.workerMessagesPerSecond = m.gauge("worker_messages_per_second", "Submissions persisted per second")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_ms", "Per-submission processing latency in milliseconds", latencyMs)
	m.workerErrors = m.counter("worker_errors_total", "Submissions that failed to persist")

	m.storeQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "store", Name: "query_latency_ms",
		Help: "Store query latency in milliseconds", Buckets: latencyMs, ConstLabels: m.constLabels,
	}, []string{"operation"})
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "store", Name: "errors_total",
		Help: "Store errors by operation", ConstLabels: m.constLabels,
	}, []string{"operation"})
	m.storeRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "store", Name: "retries_total",
		Help: "Store retries by operation", ConstLabels: m.constLabels,
	}, []string{"operation"})
	m.breakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "store", Name: "breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)", ConstLabels: m.constLabels,
	}, []string{"name"})
	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "cache", Name: "hits_total",
		Help: "Review cache hits", ConstLabels: m.constLabels,
	})
	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "cache", Name: "misses_total",
		Help: "Review cache misses", ConstLabels: m.constLabels,
	})
	m.cacheErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "cache", Name: "errors_total",
		Help: "Review cache errors by operation", ConstLabels: m.constLabels,
	}, []string{"operation"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests", ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help: "HTTP request duration in seconds", Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRateLimited = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http", Name: "rate_limited_total",
		Help: "Requests rejected by the rate limiter", ConstLabels: m.constLabels,
	}, []string{"endpoint"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "errors", Name: "by_component_total",
		Help: "Errors by component and type", ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})
	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "errors", Name: "by_endpoint_total",
		Help: "Errors by HTTP endpoint", ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system", Name: "memory_bytes",
		Help: "Heap bytes in use", ConstLabels: m.constLabels,
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system", Name: "goroutines",
		Help: "Number of goroutines", ConstLabels: m.constLabels,
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "system", Name: "gc_pause_ms",
		Help: "Last GC pause in milliseconds", Buckets: latencyMs, ConstLabels: m.constLabels,
	})
	m.uptimeSeconds = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system", Name: "uptime_seconds",
		Help: "Seconds since the service started", ConstLabels: m.constLabels,
	})
}

// Recommendation engine.

func RecordRecommendation(outcome string)          { globalManager.recommendations.WithLabelValues(outcome).Inc() }
func RecordRecommendationLatency(latencyMs float64) { globalManager.recommendationLatency.Observe(latencyMs) }
func RecordCandidatesRanked(n int)                  { globalManager.candidatesRanked.Observe(float64(n)) }
func RecordReviewsExamined(n int)                   { globalManager.reviewsExamined.Observe(float64(n)) }
func RecordLowConfidenceResults(n int)              { globalManager.lowConfidenceResults.Add(float64(n)) }
func RecordInvalidReviewData()                      { globalManager.invalidReviewData.Inc() }
func RecordCandidatesFilteredOut(n int)             { globalManager.candidatesFilteredOut.Add(float64(n)) }

// UpdateCatalogCounts sets the catalog size gauges.
func UpdateCatalogCounts(clubs, profiles, reviews int64) {
	globalManager.catalogClubs.Set(float64(clubs))
	globalManager.catalogProfiles.Set(float64(profiles))
	globalManager.catalogReviews.Set(float64(reviews))
}

// Review ingestion.

func RecordReviewSubmission(outcome string) { globalManager.reviewSubmissions.WithLabelValues(outcome).Inc() }
func RecordReviewPersisted()                { globalManager.reviewsPersisted.Inc() }

// Queue.

func UpdateQueueSize(size int)                  { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int)          { globalManager.queueCapacity.Set(float64(capacity)) }
func UpdateQueueUtilization(ratio float64)      { globalManager.queueUtilization.Set(ratio) }
func RecordQueueEnqueue()                       { globalManager.queueEnqueued.Inc() }
func RecordQueueDequeue()                       { globalManager.queueDequeued.Inc() }
func RecordQueueEnqueueError(reason string)     { globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc() }

// Workers.

func UpdateWorkerActiveCount(count int)             { globalManager.workerActiveCount.Set(float64(count)) }
func UpdateWorkerMessagesPerSecond(rate float64)    { globalManager.workerMessagesPerSecond.Set(rate) }
func RecordWorkerProcessingLatency(latencyMs float64) { globalManager.workerProcessingLatency.Observe(latencyMs) }
func RecordWorkerError()                            { globalManager.workerErrors.Inc() }

// Store and cache.

func RecordStoreQueryLatency(operation string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(operation).Observe(latencyMs)
}
func RecordStoreError(operation string) { globalManager.storeErrors.WithLabelValues(operation).Inc() }
func RecordStoreRetry(operation string) { globalManager.storeRetries.WithLabelValues(operation).Inc() }
func UpdateBreakerState(name string, state int) {
	globalManager.breakerState.WithLabelValues(name).Set(float64(state))
}
func RecordCacheHits(n int)              { globalManager.cacheHits.Add(float64(n)) }
func RecordCacheMisses(n int)            { globalManager.cacheMisses.Add(float64(n)) }
func RecordCacheError(operation string) { globalManager.cacheErrors.WithLabelValues(operation).Inc() }

// HTTP.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}
func RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}
func RecordRateLimited(endpoint string) { globalManager.httpRateLimited.WithLabelValues(endpoint).Inc() }

// Errors.

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

func UpdateSystemMemoryUsage(bytes uint64)  { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(count int)  { globalManager.systemGoroutineCount.Set(float64(count)) }
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }
func UpdateUptime(seconds float64)          { globalManager.uptimeSeconds.Set(seconds) }

// GetRegistry returns the registry the global metrics are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
