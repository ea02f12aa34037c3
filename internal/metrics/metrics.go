package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels shared by the counters.
const (
	ResultSuccess     = "success"
	ResultRateLimited = "rate_limited"
	ResultFailed      = "failed"
)

// Metrics owns a private registry so tests and multiple servers never collide
// on the global one. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	tokenRefresh    *prometheus.CounterVec
	listingRequests *prometheus.CounterVec
}

// New registers the slideshow counters plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slideshow_token_refresh_total",
			Help: "Refresh-token exchanges by outcome.",
		}, []string{"result"}),
		listingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slideshow_listing_requests_total",
			Help: "Photos Library API listing calls by operation and outcome.",
		}, []string{"op", "result"}),
	}
	m.registry.MustRegister(
		m.tokenRefresh,
		m.listingRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRefresh counts one refresh attempt.
func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.tokenRefresh.WithLabelValues(result).Inc()
}

// ObserveListing counts one listing call.
func (m *Metrics) ObserveListing(op, result string) {
	if m == nil {
		return
	}
	m.listingRequests.WithLabelValues(op, result).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
