package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initLayoutMetrics() {
	r.RelaxRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfacemap_relax_runs_total",
			Help: "Total number of relaxation runs by outcome",
		},
		[]string{"outcome"},
	)

	r.RelaxIterations = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "surfacemap_relax_iterations",
			Help:    "Iterations executed per relaxation run",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2000, 5000},
		},
	)

	r.RelaxDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "surfacemap_relax_duration_seconds",
			Help:    "Relaxation run latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	r.DragsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "surfacemap_drags_total",
			Help: "Total number of applied node drags",
		},
	)
}
