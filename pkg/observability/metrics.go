// Package observability holds the Prometheus collectors and OpenTelemetry
// tracing setup for the service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cluster_metrics"

var (
	// HTTPRequestsTotal counts requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route, and status.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds is request latency by method and route.
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
		},
		[]string{"method", "route"},
	)

	// ControlPlaneQueriesTotal counts outbound API calls by query and outcome
	// ("ok", "control-plane-error" or "unexpected-error").
	ControlPlaneQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_plane_queries_total",
			Help:      "Total number of control plane queries by query and outcome.",
		},
		[]string{"query", "outcome"},
	)

	// ControlPlaneQueryDurationSeconds is outbound API call latency by query.
	ControlPlaneQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "control_plane_query_duration_seconds",
			Help:      "Control plane query duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"query"},
	)

	// ConnectionMode is 1 for the mode resolved at startup and 0 otherwise.
	ConnectionMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_mode",
			Help:      "Connection mode resolved at startup.",
		},
		[]string{"mode"},
	)
)

var knownModes = []string{"kubernetes", "local", "mock"}

// SetMode marks mode as the active connection mode.
func SetMode(mode string) {
	for _, m := range knownModes {
		ConnectionMode.WithLabelValues(m).Set(0)
	}
	ConnectionMode.WithLabelValues(mode).Set(1)
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// QueryRecorder feeds control plane query outcomes into the collectors above.
type QueryRecorder struct{}

// ObserveQuery counts one outbound call and records its latency.
func (QueryRecorder) ObserveQuery(query, outcome string, elapsed time.Duration) {
	ControlPlaneQueriesTotal.WithLabelValues(query, outcome).Inc()
	ControlPlaneQueryDurationSeconds.WithLabelValues(query).Observe(elapsed.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
