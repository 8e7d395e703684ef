// internal/server/metrics.go
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsPath is matched by the built-in /__name__/ rewrite exemption.
const MetricsPath = "/__metrics__/"

type metrics struct {
	registry *prometheus.Registry
	rewrites *prometheus.CounterVec
	renders  *prometheus.HistogramVec
	bundles  *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		rewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagehtml",
			Name:      "rewrites_total",
			Help:      "Requests rewritten by the history fallback, by rule kind.",
		}, []string{"kind"}),
		renders: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pagehtml",
			Name:      "render_duration_seconds",
			Help:      "Time spent transforming page HTML.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"page"}),
		bundles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagehtml",
			Name:      "bundle_builds_total",
			Help:      "Dev bundle builds, by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.rewrites, m.renders, m.bundles)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) bundleBuilt(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.bundles.WithLabelValues(result).Inc()
}
