// Package metrics exposes Prometheus counters for scraping and routing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "waterbot"

// Metrics groups the collectors of one process
type Metrics struct {
	registry *prometheus.Registry

	RouteRuns       *prometheus.CounterVec
	RouteFailures   *prometheus.CounterVec
	RouteAdvisories *prometheus.CounterVec
	RouteSamples    prometheus.Histogram
	ScrapeRuns      *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RouteRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_runs_total",
			Help:      "Routing runs by validation policy.",
		}, []string{"policy"}),
		RouteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_failures_total",
			Help:      "Failed routing runs by reason.",
		}, []string{"reason"}),
		RouteAdvisories: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_advisories_total",
			Help:      "Non-fatal routing advisories by kind.",
		}, []string{"kind"}),
		RouteSamples: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_samples",
			Help:      "Length of routed hydrographs.",
			Buckets:   prometheus.ExponentialBuckets(8, 2, 10),
		}),
		ScrapeRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_runs_total",
			Help:      "Data refresh runs by result.",
		}, []string{"result"}),
	}
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
