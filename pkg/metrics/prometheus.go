// Package metrics provides Prometheus metrics for the versus rating service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rating deltas are bounded by the K-factor, so buckets cover 0..64.
var ratingDeltaBuckets = []float64{0, 1, 2, 4, 8, 12, 16, 20, 24, 28, 32, 48, 64}

// Manager manages all Prometheus metrics for the versus service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Sampling
	pairsSampled     *prometheus.CounterVec
	samplerFallbacks *prometheus.CounterVec
	insufficientPool prometheus.Counter

	// Voting
	votes            *prometheus.CounterVec
	votesRejected    *prometheus.CounterVec
	votesDuplicate   prometheus.Counter
	ratingDelta      prometheus.Histogram
	predictions      *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	totalProfiles    prometheus.Gauge
	voteApplyLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram
	repositoryErrors        *prometheus.CounterVec

	// Enrichment queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge
	enrichments        *prometheus.CounterVec
	enrichmentLatency  prometheus.Histogram
	enrichmentCache    *prometheus.CounterVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "versus",
		subsystem:        "rating",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
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

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	m.pairsSampled = m.counterVec("pairs_sampled_total",
		"Pairs handed out, by how many slots were drawn from the top stratum", "top_slots")
	m.samplerFallbacks = m.counterVec("sampler_fallbacks_total",
		"Draws that had to relax exclusion or stratification", "kind")
	m.insufficientPool = m.counter("insufficient_pool_total",
		"Sampling requests rejected because fewer than two profiles were available")

	m.votes = m.counterVec("votes_total", "Votes applied to ratings, by outcome", "outcome")
	m.votesRejected = m.counterVec("votes_rejected_total", "Votes rejected before any rating change", "reason")
	m.votesDuplicate = m.counter("votes_duplicate_total", "Vote submissions acknowledged as duplicates")
	m.ratingDelta = m.histogram("rating_delta_points", "Absolute rating change per profile per vote", ratingDeltaBuckets)
	m.predictions = m.counterVec("predictions_total",
		"Votes by whether the voter picked the higher-rated side", "correct")
	m.activeSessions = m.gauge("active_sessions", "Voting sessions currently tracked")
	m.totalProfiles = m.gauge("total_profiles", "Profiles in the rating pool")
	m.voteApplyLatency = m.histogram("vote_apply_latency_milliseconds",
		"Latency of the read-modify-write that applies a vote", m.histogramBuckets)

	m.httpRequests = promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total", Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_request_duration_milliseconds", Help: "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds",
		"Latency of repository writes", m.histogramBuckets)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds",
		"Latency of repository reads", m.histogramBuckets)
	m.repositoryErrors = m.counterVec("repository_errors_total", "Repository failures by operation", "op")

	m.queueSize = m.gauge("enrich_queue_size", "Enrichment jobs waiting in the queue")
	m.queueCapacity = m.gauge("enrich_queue_capacity", "Capacity of the enrichment queue")
	m.queueEnqueued = m.counter("enrich_queue_enqueued_total", "Enrichment jobs enqueued")
	m.queueDequeued = m.counter("enrich_queue_dequeued_total", "Enrichment jobs dequeued")
	m.queueEnqueueErrors = m.counter("enrich_queue_enqueue_errors_total", "Enrichment jobs dropped on enqueue")
	m.workerCount = m.gauge("enrich_worker_count", "Enrichment workers running")
	m.enrichments = m.counterVec("enrichments_total", "Enrichment attempts by result", "result")
	m.enrichmentLatency = m.histogram("enrichment_latency_milliseconds",
		"Latency of people-data API lookups", m.histogramBuckets)
	m.enrichmentCache = m.counterVec("enrichment_cache_total", "Enrichment cache lookups", "result")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint",
		"endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause", m.histogramBuckets)
}

// Sampling.

func RecordPairSampled(topSlots int) {
	if globalManager.enabled {
		globalManager.pairsSampled.WithLabelValues(itoa(topSlots)).Inc()
	}
}

func RecordSamplerFallback(kind string) {
	if globalManager.enabled {
		globalManager.samplerFallbacks.WithLabelValues(kind).Inc()
	}
}

func RecordInsufficientPool() {
	if globalManager.enabled {
		globalManager.insufficientPool.Inc()
	}
}

// Voting.

func RecordVote(outcome string) {
	if globalManager.enabled {
		globalManager.votes.WithLabelValues(outcome).Inc()
	}
}

func RecordVoteRejected(reason string) {
	if globalManager.enabled {
		globalManager.votesRejected.WithLabelValues(reason).Inc()
	}
}

func RecordVoteDuplicate() {
	if globalManager.enabled {
		globalManager.votesDuplicate.Inc()
	}
}

func RecordRatingDelta(delta float64) {
	if globalManager.enabled {
		if delta < 0 {
			delta = -delta
		}
		globalManager.ratingDelta.Observe(delta)
	}
}

func RecordPrediction(correct bool) {
	if globalManager.enabled {
		label := "false"
		if correct {
			label = "true"
		}
		globalManager.predictions.WithLabelValues(label).Inc()
	}
}

func UpdateActiveSessions(count int) {
	if globalManager.enabled {
		globalManager.activeSessions.Set(float64(count))
	}
}

func UpdateTotalProfiles(count int) {
	if globalManager.enabled {
		globalManager.totalProfiles.Set(float64(count))
	}
}

func RecordVoteApplyLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.voteApplyLatency.Observe(latencyMs)
	}
}

// HTTP.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// Repository.

func RecordRepositoryUpdateLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.repositoryUpdateLatency.Observe(latencyMs)
	}
}

func RecordRepositoryQueryLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.repositoryQueryLatency.Observe(latencyMs)
	}
}

func RecordRepositoryError(op string) {
	if globalManager.enabled {
		globalManager.repositoryErrors.WithLabelValues(op).Inc()
	}
}

// Enrichment queue and workers.

func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

func RecordQueueEnqueue() {
	if globalManager.enabled {
		globalManager.queueEnqueued.Inc()
	}
}

func RecordQueueDequeue() {
	if globalManager.enabled {
		globalManager.queueDequeued.Inc()
	}
}

func RecordQueueEnqueueError() {
	if globalManager.enabled {
		globalManager.queueEnqueueErrors.Inc()
	}
}

func UpdateWorkerCount(count int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

func RecordEnrichment(result string) {
	if globalManager.enabled {
		globalManager.enrichments.WithLabelValues(result).Inc()
	}
}

func RecordEnrichmentLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.enrichmentLatency.Observe(latencyMs)
	}
}

func RecordEnrichmentCache(hit bool) {
	if globalManager.enabled {
		label := "miss"
		if hit {
			label = "hit"
		}
		globalManager.enrichmentCache.WithLabelValues(label).Inc()
	}
}

// Errors.

func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

func RecordErrorByType(errorType, severity string) {
	if globalManager.enabled {
		globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
	}
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System.

func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

func RecordSystemGCPauseTime(pauseMs float64) {
	if globalManager.enabled {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the registry that backs the package-level helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
