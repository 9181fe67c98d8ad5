// Package metrics exposes Prometheus metrics for graph builds, layout work,
// lookups and the HTTP surface.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	// Graph Metrics
	GraphBuildsTotal *prometheus.CounterVec
	GraphNodes       prometheus.Histogram
	GraphLinks       prometheus.Histogram
	RiskScore        prometheus.Gauge
	ActiveSessions   prometheus.Gauge

	// Layout Metrics
	RelaxRunsTotal  *prometheus.CounterVec
	RelaxIterations prometheus.Histogram
	RelaxDuration   prometheus.Histogram
	DragsTotal      prometheus.Counter

	// Lookup Metrics
	BreachLookupsTotal     *prometheus.CounterVec
	BreachLookupDuration   *prometheus.HistogramVec
	NarrativeRequestsTotal *prometheus.CounterVec

	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	// Initialize all metrics
	r.initGraphMetrics()
	r.initLayoutMetrics()
	r.initLookupMetrics()
	r.initHTTPMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
