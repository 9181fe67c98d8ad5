package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initGraphMetrics() {
	r.GraphBuildsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfacemap_graph_builds_total",
			Help: "Total number of attack surface graph builds",
		},
		[]string{"status"},
	)

	r.GraphNodes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "surfacemap_graph_nodes",
			Help:    "Number of nodes per built graph",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	r.GraphLinks = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "surfacemap_graph_links",
			Help:    "Number of links per built graph",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	r.RiskScore = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "surfacemap_risk_score",
			Help: "Risk score of the most recently analysed identity",
		},
	)

	r.ActiveSessions = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "surfacemap_active_sessions",
			Help: "Current number of open view sessions",
		},
	)
}
