// Package metrics registers the Prometheus collectors the control
// plane exposes on /metrics, grounded on the client_golang usage in
// _examples/cuemby-warren, _examples/dhiaayachi-consul and
// _examples/stevenctl-istio (spec.md §4.7 AMBIENT STACK).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts counts Authenticate calls by outcome: success,
	// malformed, not_found, inactive, expired.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowplane",
		Subsystem: "auth",
		Name:      "attempts_total",
		Help:      "Authentication attempts by outcome.",
	}, []string{"outcome"})

	// TokensExpiredTotal counts tokens transitioned to expired by the
	// sweeper.
	TokensExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flowplane",
		Subsystem: "auth",
		Name:      "tokens_expired_total",
		Help:      "Tokens transitioned from active to expired by the sweeper.",
	})

	// ADSActiveStreams is the current count of open ADS streams.
	ADSActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowplane",
		Subsystem: "ads",
		Name:      "active_streams",
		Help:      "Currently open AggregatedDiscoveryService streams.",
	})

	// ADSPushesTotal counts discovery responses sent, by resource type.
	ADSPushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowplane",
		Subsystem: "ads",
		Name:      "pushes_total",
		Help:      "DiscoveryResponses sent, by type URL.",
	}, []string{"type_url"})

	// ADSNacksTotal counts NACKed discovery requests, by resource type.
	ADSNacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowplane",
		Subsystem: "ads",
		Name:      "nacks_total",
		Help:      "DiscoveryRequests received with error_detail set, by type URL.",
	}, []string{"type_url"})

	// GlobalVersion mirrors the hub's current global config version.
	GlobalVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowplane",
		Name:      "global_version",
		Help:      "Current process-wide monotonic config version.",
	})

	// APIRequestsTotal counts REST admin requests by method, route
	// template and status class.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowplane",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "REST admin API requests by method, route and status class.",
	}, []string{"method", "route", "status_class"})

	// APIRequestDuration observes REST admin request latency by method
	// and route template.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flowplane",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "REST admin API request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)
