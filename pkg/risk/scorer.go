// Package risk scores an attack surface graph.
package risk

import (
	"github.com/securely/surfacemap/pkg/cycles"
	attackgraph "github.com/securely/surfacemap/pkg/graph"
	"github.com/securely/surfacemap/pkg/model"
)

// MaxScore is the ceiling of the aggregate score.
const MaxScore = 100

// Weights is the score contribution of one platform per risk level.
var Weights = map[model.RiskLevel]int{
	model.RiskCritical: 25,
	model.RiskHigh:     15,
	model.RiskMedium:   8,
	model.RiskLow:      3,
}

// Histogram counts platforms per risk level.
type Histogram struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Add increments the bucket for level. Unknown levels are ignored.
func (h *Histogram) Add(level model.RiskLevel) {
	switch level {
	case model.RiskCritical:
		h.Critical++
	case model.RiskHigh:
		h.High++
	case model.RiskMedium:
		h.Medium++
	case model.RiskLow:
		h.Low++
	}
}

// Count returns the bucket for level.
func (h Histogram) Count(level model.RiskLevel) int {
	switch level {
	case model.RiskCritical:
		return h.Critical
	case model.RiskHigh:
		return h.High
	case model.RiskMedium:
		return h.Medium
	case model.RiskLow:
		return h.Low
	}
	return 0
}

// Score is the aggregate score and histogram.
type Score struct {
	Total     int       `json:"total"`
	Histogram Histogram `json:"histogram"`
}

// Summary is the full risk report for one graph.
type Summary struct {
	Score
	ThreatLevel model.RiskLevel     `json:"threatLevel"`
	Categories  []string            `json:"categories"`
	ReuseCycles []cycles.ReuseCycle `json:"reuseCycles"`
	BlastRadius map[string]int      `json:"blastRadius"`
}

// Compute scores the Platform nodes of g: the sum of their weights,
// clamped at MaxScore. Center and potential targets do not count.
func Compute(g *model.Graph) Score {
	var s Score
	for _, n := range g.NodesOfKind(model.NodePlatform) {
		s.Histogram.Add(n.RiskLevel)
		s.Total += Weights[n.RiskLevel]
	}
	if s.Total > MaxScore {
		s.Total = MaxScore
	}
	return s
}

// ThreatLevel bands a total score.
func ThreatLevel(total int) model.RiskLevel {
	switch {
	case total >= 75:
		return model.RiskCritical
	case total >= 50:
		return model.RiskHigh
	case total >= 25:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Summarize builds the full report: score, threat level, the distinct
// platform categories in first-seen order, credential reuse loops and the
// number of platforms reachable from each platform by lateral movement.
func Summarize(g *model.Graph) Summary {
	score := Compute(g)
	summary := Summary{
		Score:       score,
		ThreatLevel: ThreatLevel(score.Total),
		Categories:  make([]string, 0),
		BlastRadius: make(map[string]int),
	}

	seen := make(map[string]bool)
	for _, n := range g.NodesOfKind(model.NodePlatform) {
		if !seen[n.Category] {
			seen[n.Category] = true
			summary.Categories = append(summary.Categories, n.Category)
		}
	}

	ag := attackgraph.NewAttackGraph(g, model.LinkLateralMovement)
	summary.ReuseCycles = cycles.FindReuseCycles(ag)
	for _, n := range g.NodesOfKind(model.NodePlatform) {
		summary.BlastRadius[n.ID] = len(ag.Distances(n.ID))
	}
	return summary
}
