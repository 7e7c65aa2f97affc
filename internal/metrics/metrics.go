package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StorageOpsTotal tracks repository operations per entity and operation
	StorageOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defter_storage_ops_total",
			Help: "Total number of repository operations",
		},
		[]string{"entity", "op"},
	)

	// StorageErrorsTotal tracks classified failures per kind
	StorageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defter_storage_errors_total",
			Help: "Total number of classified storage failures",
		},
		[]string{"kind"},
	)

	// RetryAttemptsTotal tracks retry attempts beyond the first try
	RetryAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "defter_retry_attempts_total",
			Help: "Total number of retried attempts",
		},
	)

	// RateLimitRejectionsTotal tracks rejected admissions per class
	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defter_ratelimit_rejections_total",
			Help: "Total number of rate limiter rejections",
		},
		[]string{"class"},
	)

	// CacheRequestsTotal tracks cache reads by outcome (hit, stale, miss)
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defter_cache_requests_total",
			Help: "Total number of cache reads by outcome",
		},
		[]string{"outcome"},
	)

	// CacheRefreshesTotal tracks background refreshes
	CacheRefreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "defter_cache_refreshes_total",
			Help: "Total number of background cache refreshes",
		},
	)

	// TrashPurgedTotal tracks permanently purged trash entries
	TrashPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "defter_trash_purged_total",
			Help: "Total number of trash entries permanently purged",
		},
	)

	// DBConnectionPoolUsage tracks connection pool utilisation percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "defter_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)

	// OpLatency tracks repository operation latency
	OpLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "defter_storage_op_latency_seconds",
			Help:    "Repository operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity", "op"},
	)
)
