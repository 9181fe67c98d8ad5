package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initLookupMetrics() {
	r.BreachLookupsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfacemap_breach_lookups_total",
			Help: "Total number of breach lookups by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	r.BreachLookupDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surfacemap_breach_lookup_duration_seconds",
			Help:    "Breach lookup latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	r.NarrativeRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfacemap_narrative_requests_total",
			Help: "Total number of narrative requests by outcome",
		},
		[]string{"outcome"},
	)
}
