// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the resolution pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts handled HTTP requests by route pattern and status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptv_bridge_http_requests_total",
		Help: "Handled HTTP requests.",
	}, []string{"method", "route", "status"})

	// RequestDuration observes per-request wall time by route pattern.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "iptv_bridge_http_request_duration_seconds",
		Help:    "HTTP request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// RelayUpstreamErrors counts failed upstream fetches by stable error code.
	RelayUpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptv_bridge_relay_upstream_errors_total",
		Help: "Relay upstream fetch failures.",
	}, []string{"code"})

	// ResolutionsTotal counts VOD resolutions by provider and outcome.
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptv_bridge_vod_resolutions_total",
		Help: "VOD resolution attempts.",
	}, []string{"provider", "outcome"})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
