package telemetry

import "github.com/prometheus/client_golang/prometheus"

// HTTPRequestDuration tracks HTTP request latency.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "vaultcache",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// CredentialsTracked reports how many credentials are currently tracked
// by the auth manager.
var CredentialsTracked = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "vaultcache",
		Subsystem: "auth",
		Name:      "credentials_tracked",
		Help:      "Number of credentials currently tracked by the auth manager.",
	},
)

// ScheduledRefreshTotal counts scheduled credential refreshes by outcome.
var ScheduledRefreshTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "vaultcache",
		Subsystem: "auth",
		Name:      "scheduled_refresh_total",
		Help:      "Scheduled credential refreshes, by outcome.",
	},
	[]string{"outcome"}, // "success" or "failure"
)

// CacheLookupsTotal counts account cache lookups by outcome.
var CacheLookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "vaultcache",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Account cache lookups, by outcome.",
	},
	[]string{"outcome"}, // "hit" or "miss"
)

// UpstreamCallsTotal counts calls to the upstream API by operation and
// outcome.
var UpstreamCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "vaultcache",
		Subsystem: "upstream",
		Name:      "calls_total",
		Help:      "Upstream API calls, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// All returns vaultcache-specific metrics for registration, including
// HTTPRequestDuration which internal/httpserver's Metrics middleware
// writes to directly.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		CredentialsTracked,
		ScheduledRefreshTotal,
		CacheLookupsTotal,
		UpstreamCallsTotal,
	}
}
