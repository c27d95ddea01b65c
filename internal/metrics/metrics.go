package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamCallsTotal tracks explorer API calls per action
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethtracker_upstream_calls_total",
			Help: "Total number of explorer API calls",
		},
		[]string{"action"},
	)

	// UpstreamErrorsTotal tracks explorer API errors per kind
	UpstreamErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethtracker_upstream_errors_total",
			Help: "Total number of explorer API errors",
		},
		[]string{"kind"},
	)

	// UpstreamLatency tracks explorer API call latency
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ethtracker_upstream_latency_seconds",
			Help:    "Explorer API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// CacheHitsTotal tracks read-through cache hits
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ethtracker_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMissesTotal tracks read-through cache misses
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ethtracker_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// ReportJobsTotal tracks report job terminal outcomes
	ReportJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethtracker_report_jobs_total",
			Help: "Total number of report jobs by terminal status",
		},
		[]string{"status"},
	)

	// HTTPRequestsTotal tracks API requests per endpoint and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethtracker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// DBConnectionPoolUsage tracks database connection pool utilization
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ethtracker_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)
