// Package metrics exposes Prometheus instrumentation for the carrier
// forwarding path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Carrier tracks outbound carrier call volume and latency per module.
type Carrier struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCarrier builds a Carrier metrics set on a fresh registry that also
// carries the standard Go and process collectors.
func NewCarrier() *Carrier {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odex_carrier_requests_total",
		Help: "Total outbound carrier calls, partitioned by module and outcome.",
	}, []string{"module", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odex_carrier_request_duration_seconds",
		Help:    "Wall-clock duration of outbound carrier calls.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"module"})

	registry.MustRegister(requests, duration)

	return &Carrier{
		registry: registry,
		requests: requests,
		duration: duration,
	}
}

// Observe records one resolved carrier call. Nil receivers are tolerated
// so callers without metrics wiring (tests) need no special casing.
func (c *Carrier) Observe(module string, failed bool, tookMs int64) {
	if c == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failed"
	}
	c.requests.WithLabelValues(module, outcome).Inc()
	c.duration.WithLabelValues(module).Observe(float64(tookMs) / 1000)
}

// Handler returns the /metrics HTTP handler for this registry.
func (c *Carrier) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
