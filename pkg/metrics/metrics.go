package metrics

import (
	"strconv"
	"time"

	"github.com/securely/surfacemap/pkg/layout"
)

// Relax run outcomes.
const (
	OutcomeConverged = "converged"
	OutcomeExhausted = "exhausted"
	OutcomeCancelled = "cancelled"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	r.HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

// RecordGraphBuild records a graph build and its size
func (r *Registry) RecordGraphBuild(nodes, links int, err error) {
	if err != nil {
		r.GraphBuildsTotal.WithLabelValues("error").Inc()
		return
	}
	r.GraphBuildsTotal.WithLabelValues("success").Inc()
	r.GraphNodes.Observe(float64(nodes))
	r.GraphLinks.Observe(float64(links))
}

// SetRiskScore records the score of the latest analysis
func (r *Registry) SetRiskScore(total int) {
	r.RiskScore.Set(float64(total))
}

// SetActiveSessions records the number of open sessions
func (r *Registry) SetActiveSessions(n int) {
	r.ActiveSessions.Set(float64(n))
}

// RecordBreachLookup records a breach lookup against a source
func (r *Registry) RecordBreachLookup(source string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.BreachLookupsTotal.WithLabelValues(source, outcome).Inc()
	r.BreachLookupDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordNarrative records whether a narrative was generated or fell back
func (r *Registry) RecordNarrative(fallback bool) {
	if fallback {
		r.NarrativeRequestsTotal.WithLabelValues("fallback").Inc()
		return
	}
	r.NarrativeRequestsTotal.WithLabelValues("generated").Inc()
}

// RelaxFinished records a finished relaxation run
func (r *Registry) RelaxFinished(res layout.RelaxResult) {
	r.RelaxRunsTotal.WithLabelValues(RelaxOutcome(res)).Inc()
	r.RelaxIterations.Observe(float64(res.Iterations))
	r.RelaxDuration.Observe(res.Duration.Seconds())
}

// NodeDragged records an applied drag
func (r *Registry) NodeDragged() {
	r.DragsTotal.Inc()
}

// RelaxOutcome classifies a relaxation result
func RelaxOutcome(res layout.RelaxResult) string {
	switch {
	case res.Cancelled:
		return OutcomeCancelled
	case res.Converged:
		return OutcomeConverged
	}
	return OutcomeExhausted
}
