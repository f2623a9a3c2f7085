package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "agentguard"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Entitlement metrics. Labels are bounded by the plan catalog and rule list.
var (
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_verdicts_total",
			Help:      "Guard verdicts by tier, mode, outcome and deciding rule",
		},
		[]string{"tier", "mode", "outcome", "rule"},
	)

	UpsellsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsells_offered_total",
			Help:      "Upsell suggestions attached to verdicts",
		},
		[]string{"kind", "target"},
	)

	UsageConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_conflicts_total",
			Help:      "Usage writes rejected by the store",
		},
		[]string{"reason"}, // "ceiling" or "duplicate"
	)
)

// FAQ cache metrics
var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faq_cache_lookups_total",
			Help:      "FAQ cache lookups by result",
		},
		[]string{"result"}, // "hit" or "miss"
	)

	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faq_cache_writes_total",
			Help:      "FAQ cache write decisions",
		},
		[]string{"result"}, // "stored", "skipped" or "failed"
	)
)

// AI metrics (aggregate totals, no org label to avoid cardinality)
var (
	AIAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_api_calls_total",
			Help:      "Total number of AI API calls",
		},
		[]string{"provider", "status"},
	)

	AIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "AI completion latency distribution",
			Buckets:   []float64{.1, .25, .5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	AITokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Total AI tokens consumed",
		},
		[]string{"type"}, // "input" or "output"
	)
)

// Maintenance worker metrics
var (
	TaskRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_task_runs_total",
			Help:      "Maintenance task runs by outcome",
		},
		[]string{"task", "result"}, // "success" or "failure"
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_task_duration_seconds",
			Help:      "Maintenance task duration distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"task"},
	)

	PrunedRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_pruned_total",
			Help:      "Records removed by maintenance tasks",
		},
		[]string{"task"},
	)
)
