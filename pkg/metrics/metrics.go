package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TrackingDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_decisions_total",
			Help: "Total number of tracking decisions evaluated (count)",
		},
		[]string{"status"},
	)

	TrackingDecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracking_decision_duration_ms",
			Help:    "Duration of tracking decision evaluation in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	TrackingCachedRuleSets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracking_cached_rule_sets",
			Help: "Number of workstation rule sets held in the tracking cache (count)",
		},
	)

	RuleSetSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "management_rule_set_saves_total",
			Help: "Total number of rule set save operations (count)",
		},
		[]string{"status"},
	)

	ImportRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Total number of rows processed by import service (count)",
		},
		[]string{"status"},
	)

	ImportBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_batches_total",
			Help: "Total number of import batches processed (count)",
		},
		[]string{"status"},
	)

	ImportBatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "import_batch_duration_ms",
			Help:    "Duration of import batch processing in milliseconds",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000},
		},
		[]string{"status"},
	)

	ImportDedupCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "import_dedup_cache_size",
			Help: "Approximate size of the import deduplication cache (count)",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)
)

func RegisterManagementMetrics() {
	prometheus.MustRegister(RuleSetSavesTotal)
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterTrackingMetrics() {
	prometheus.MustRegister(TrackingDecisionsTotal)
	prometheus.MustRegister(TrackingDecisionDuration)
	prometheus.MustRegister(TrackingCachedRuleSets)
	registerFallbackUsageTotalOnce()
}

func RegisterImportMetrics() {
	prometheus.MustRegister(ImportRowsTotal)
	prometheus.MustRegister(ImportBatchesTotal)
	prometheus.MustRegister(ImportBatchDuration)
	prometheus.MustRegister(ImportDedupCacheSize)
	registerFallbackUsageTotalOnce()
}

func registerFallbackUsageTotalOnce() {
	prometheus.MustRegister(FallbackUsageTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveDecisionDuration(duration time.Duration, status string) {
	TrackingDecisionDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func SetTrackingCachedRuleSets(count int) {
	TrackingCachedRuleSets.Set(float64(count))
}

func ObserveImportBatchDuration(duration time.Duration, status string) {
	ImportBatchDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func SetImportDedupCacheSize(size int) {
	ImportDedupCacheSize.Set(float64(size))
}
