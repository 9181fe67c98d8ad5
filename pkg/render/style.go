package render

import (
	"time"

	"github.com/securely/surfacemap/pkg/model"
	"github.com/securely/surfacemap/pkg/risk"
)

// Options tunes the markup renderers.
type Options struct {
	Title   string
	Summary *risk.Summary
	// Now stamps exports. Nil means time.Now.
	Now func() time.Time
}

// LinkStyle is the stroke used for one link kind.
type LinkStyle struct {
	Color string
	Width float64
	Dash  string
}

var linkStyles = map[model.LinkKind]LinkStyle{
	model.LinkBreach:          {Color: "#dc3545", Width: 2},
	model.LinkLateralMovement: {Color: "#fd7e14", Width: 1.5, Dash: "6,4"},
	model.LinkPotentialAttack: {Color: "#6c757d", Width: 1, Dash: "2,4"},
	model.LinkCompromisePath:  {Color: "#8b0000", Width: 3},
}

// StyleOf returns the stroke for a link kind.
func StyleOf(kind model.LinkKind) LinkStyle {
	if s, ok := linkStyles[kind]; ok {
		return s
	}
	return LinkStyle{Color: "#999999", Width: 1}
}

var riskColors = map[model.RiskLevel]string{
	model.RiskCritical: "#dc3545",
	model.RiskHigh:     "#fd7e14",
	model.RiskMedium:   "#ffc107",
	model.RiskLow:      "#198754",
}

// RiskColor returns the outline color of a risk level.
func RiskColor(level model.RiskLevel) string {
	if c, ok := riskColors[level]; ok {
		return c
	}
	return "#6c757d"
}

func fillOf(n model.Node) string {
	if n.Color != "" {
		return n.Color
	}
	return RiskColor(n.RiskLevel)
}
