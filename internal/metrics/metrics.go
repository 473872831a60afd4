// Package metrics defines and registers all custom Prometheus metrics of the
// service. It is the single source of truth for metric names, labels, and
// help strings. Metrics are registered with the default registry on import
// and exposed on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "restful"

// ── Cache metrics ─────────────────────────────────────────────────────────────

// CacheLookupsTotal counts cache reads.
// Label:
//   - result: "hit", "miss" or "error" (backend failure downgraded to a miss)
var CacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Total number of entity cache lookups, by result.",
	},
	[]string{"result"},
)

// CacheEvictionsTotal counts entries dropped by the memory backend to stay
// under its weighted size limit.
var CacheEvictionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_evictions_total",
		Help:      "Total number of cache entries evicted to honour the size limit.",
	},
)

// CacheInvalidationErrorsTotal counts failed explicit removals.
var CacheInvalidationErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidation_errors_total",
		Help:      "Total number of cache invalidations that failed in the backend.",
	},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts credential operations.
// Labels:
//   - op: "register", "login", "refresh", "logout"
//   - outcome: "success", "invalid", "conflict", "error"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of credential operations, by operation and outcome.",
	},
	[]string{"op", "outcome"},
)

// RefreshReuseTotal counts presentations of already rotated refresh tokens.
var RefreshReuseTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_token_reuse_total",
		Help:      "Total number of revoked refresh tokens presented again (replay).",
	},
)

// ── HTTP metrics ──────────────────────────────────────────────────────────────

// HTTPRequestDuration measures handler latency.
// Labels:
//   - method: HTTP method
//   - route: echo route pattern (e.g. "/v1/employees/:id")
//   - code: response status code
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests by method, route and status code.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "code"},
)
