// Package metrics provides Prometheus metrics for the EcoLedger rewards service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ledger
	actionsTracked    *prometheus.CounterVec
	pointsAwarded     *prometheus.CounterVec
	badgesUnlocked    *prometheus.CounterVec
	actionsDuplicate  prometheus.Counter
	validationErrors  prometheus.Counter
	usersTotal        prometheus.Gauge
	regionsTotal      prometheus.Gauge
	applyLatency      prometheus.Histogram
	reindexLatency    prometheus.Histogram
	leaderboardReads  *prometheus.CounterVec
	milestonesReached *prometheus.CounterVec

	// Mint gateway
	mintAttempts *prometheus.CounterVec
	mintFailures *prometheus.CounterVec
	mintLatency  prometheus.Histogram

	// Mint queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge
	workerBusy         prometheus.Gauge

	// Journal
	journalWrites   prometheus.Counter
	journalErrors   prometheus.Counter
	journalReplayed prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

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

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ecoledger",
		subsystem:        "rewards",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.NewRegistry(),
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

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.actionsTracked = m.counterVec("actions_tracked_total", "Accepted sustainability actions by kind", "kind")
	m.pointsAwarded = m.counterVec("points_awarded_total", "EcoPoints awarded by action kind", "kind")
	m.badgesUnlocked = m.counterVec("badges_unlocked_total", "Badge unlocks by badge id", "badge")
	m.actionsDuplicate = m.counter("actions_duplicate_total", "Actions dropped because their action_id was already applied")
	m.validationErrors = m.counter("validation_errors_total", "Actions rejected by validation")
	m.usersTotal = m.gauge("users_total", "Users present in the ledger")
	m.regionsTotal = m.gauge("regions_total", "Regional leaderboard scopes")
	m.applyLatency = m.histogram("apply_latency_milliseconds", "Ledger apply latency in milliseconds")
	m.reindexLatency = m.histogram("reindex_latency_milliseconds", "Leaderboard reindex latency in milliseconds")
	m.leaderboardReads = m.counterVec("leaderboard_reads_total", "Leaderboard queries by scope type", "scope")
	m.milestonesReached = m.counterVec("milestones_reached_total", "EcoPoints thresholds crossed", "threshold")

	m.mintAttempts = m.counterVec("mint_attempts_total", "Mint requests sent to the gateway", "kind")
	m.mintFailures = m.counterVec("mint_failures_total", "Failed mint requests by reason", "kind", "reason")
	m.mintLatency = m.histogram("mint_latency_milliseconds", "Mint gateway round trip in milliseconds")

	m.queueSize = m.gauge("mint_queue_size", "Mint jobs waiting in the queue")
	m.queueCapacity = m.gauge("mint_queue_capacity", "Mint queue capacity")
	m.queueEnqueued = m.counter("mint_queue_enqueued_total", "Mint jobs enqueued")
	m.queueDequeued = m.counter("mint_queue_dequeued_total", "Mint jobs dequeued")
	m.queueEnqueueErrors = m.counter("mint_queue_enqueue_errors_total", "Mint jobs rejected by the queue")
	m.workerCount = m.gauge("mint_worker_count", "Mint workers running")
	m.workerBusy = m.gauge("mint_worker_busy", "Mint workers currently calling the gateway")

	m.journalWrites = m.counter("journal_writes_total", "Action records written to the journal")
	m.journalErrors = m.counter("journal_errors_total", "Journal write failures")
	m.journalReplayed = m.gauge("journal_replayed_records", "Records replayed from the journal at startup")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// RecordActionTracked counts one accepted action and its points.
func RecordActionTracked(kind string, points int64) {
	if !globalManager.enabled {
		return
	}
	globalManager.actionsTracked.WithLabelValues(kind).Inc()
	globalManager.pointsAwarded.WithLabelValues(kind).Add(float64(points))
}

// RecordBadgeUnlocked counts one badge unlock.
func RecordBadgeUnlocked(badge string) {
	globalManager.badgesUnlocked.WithLabelValues(badge).Inc()
}

// RecordMilestone counts an EcoPoints threshold crossing.
func RecordMilestone(threshold string) {
	globalManager.milestonesReached.WithLabelValues(threshold).Inc()
}

func RecordActionDuplicate() { globalManager.actionsDuplicate.Inc() }

func RecordValidationError() { globalManager.validationErrors.Inc() }

func UpdateUsersTotal(count int) { globalManager.usersTotal.Set(float64(count)) }

func UpdateRegionsTotal(count int) { globalManager.regionsTotal.Set(float64(count)) }

func RecordApplyLatency(ms float64) { globalManager.applyLatency.Observe(ms) }

func RecordReindexLatency(ms float64) { globalManager.reindexLatency.Observe(ms) }

// RecordLeaderboardRead counts a leaderboard query for "global" or "regional".
func RecordLeaderboardRead(scope string) {
	globalManager.leaderboardReads.WithLabelValues(scope).Inc()
}

func RecordMintAttempt(kind string) { globalManager.mintAttempts.WithLabelValues(kind).Inc() }

// RecordMintFailure counts a failed mint; reason is a short token such as "timeout".
func RecordMintFailure(kind, reason string) {
	globalManager.mintFailures.WithLabelValues(kind, reason).Inc()
}

func RecordMintLatency(ms float64) { globalManager.mintLatency.Observe(ms) }

func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

func IncWorkerBusy() { globalManager.workerBusy.Inc() }

func DecWorkerBusy() { globalManager.workerBusy.Dec() }

func RecordJournalWrite() { globalManager.journalWrites.Inc() }

func RecordJournalError() { globalManager.journalErrors.Inc() }

func UpdateJournalReplayed(count int) { globalManager.journalReplayed.Set(float64(count)) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// RefreshInterval is how often periodic gauges should be pushed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RefreshInterval reports the package-level manager's gauge refresh period.
func RefreshInterval() time.Duration { return globalManager.RefreshInterval() }

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
