// Package output prints the console risk report.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/securely/surfacemap/pkg/model"
	"github.com/securely/surfacemap/pkg/risk"
)

var levelColors = map[model.RiskLevel]*color.Color{
	model.RiskCritical: color.New(color.FgRed, color.Bold),
	model.RiskHigh:     color.New(color.FgRed),
	model.RiskMedium:   color.New(color.FgYellow),
	model.RiskLow:      color.New(color.FgGreen),
}

func levelColor(level model.RiskLevel) *color.Color {
	if c, ok := levelColors[level]; ok {
		return c
	}
	return color.New(color.FgWhite)
}

// PrintRiskReport prints a nicely formatted risk report with colors. story is
// printed at the end when non-empty.
func PrintRiskReport(w io.Writer, snap model.Snapshot, summary risk.Summary, story string) {
	// Color definitions
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	faint := color.New(color.Faint)

	// Header
	bold.Fprintln(w, "Attack Surface Report")
	bold.Fprintln(w, "=====================")
	fmt.Fprintf(w, "Identity: %s\n", snap.Email)

	platforms := nodesOfKind(snap, model.NodePlatform)
	if len(platforms) == 0 {
		levelColor(model.RiskLow).Fprintln(w, "No breached accounts found")
	} else {
		fmt.Fprintf(w, "Breached accounts: %d\n", len(platforms))
	}
	fmt.Fprintln(w)

	if len(platforms) > 0 {
		bold.Fprintln(w, "BREACHED PLATFORMS:")
		for _, n := range platforms {
			c := levelColor(n.RiskLevel)
			c.Fprintf(w, "  %s %s (%s)\n", n.Icon, n.Label, n.ID)
			fmt.Fprintf(w, "    Category: %s  Risk: ", n.Category)
			c.Fprintln(w, n.RiskLevel)
			if n.Breach != nil {
				if len(n.Breach.Dates) > 0 {
					fmt.Fprintf(w, "    Breached: %s\n", strings.Join(n.Breach.Dates, ", "))
				}
				if len(n.Breach.DataTypes) > 0 {
					fmt.Fprintf(w, "    Data exposed: %s\n", strings.Join(n.Breach.DataTypes, ", "))
				}
			}
		}
		fmt.Fprintln(w)
	}

	if lateral := linksOfKind(snap, model.LinkLateralMovement); len(lateral) > 0 {
		bold.Fprintln(w, "LATERAL MOVEMENT PATHS:")
		for _, l := range lateral {
			levelColor(l.RiskLevel).Fprintf(w, "  %s -> %s (%s)\n", l.Source, l.Target, l.RiskLevel)
		}
		fmt.Fprintln(w)
	}

	if len(summary.ReuseCycles) > 0 {
		bold.Fprintln(w, "CREDENTIAL REUSE LOOPS:")
		for _, c := range summary.ReuseCycles {
			levelColor(model.RiskHigh).Fprintf(w, "  %s\n", strings.Join(c.Platforms, " <-> "))
		}
		fmt.Fprintln(w)
	}

	if reach := blastRadius(summary.BlastRadius); len(reach) > 0 {
		bold.Fprintln(w, "BLAST RADIUS:")
		for _, e := range reach {
			fmt.Fprintf(w, "  %s reaches %d other platform(s)\n", e.id, e.n)
		}
		fmt.Fprintln(w)
	}

	if targets := nodesOfKind(snap, model.NodePotentialTarget); len(targets) > 0 {
		bold.Fprintln(w, "POTENTIAL TARGETS:")
		attacked := make(map[string]string)
		for _, l := range linksOfKind(snap, model.LinkPotentialAttack) {
			attacked[l.Target] = l.Source
		}
		for _, n := range targets {
			if src, ok := attacked[n.ID]; ok {
				cyan.Fprintf(w, "  %s (via %s)\n", n.Label, src)
			} else {
				faint.Fprintf(w, "  %s\n", n.Label)
			}
		}
		fmt.Fprintln(w)
	}

	h := summary.Histogram
	fmt.Fprintf(w, "Risk levels: critical %d, high %d, medium %d, low %d\n", h.Critical, h.High, h.Medium, h.Low)
	if len(summary.Categories) > 0 {
		fmt.Fprintf(w, "Categories: %s\n", strings.Join(summary.Categories, ", "))
	}

	// Summary with color based on the threat level
	levelColor(summary.ThreatLevel).Fprintf(w, "Risk score: %d/100 (threat level %s)\n", summary.Total, summary.ThreatLevel)

	if story = strings.TrimSpace(story); story != "" {
		fmt.Fprintln(w)
		bold.Fprintln(w, "WHAT THIS MEANS:")
		fmt.Fprintln(w, story)
	}
}

func nodesOfKind(snap model.Snapshot, kind model.NodeKind) []model.Node {
	var out []model.Node
	for _, n := range snap.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func linksOfKind(snap model.Snapshot, kind model.LinkKind) []model.Link {
	var out []model.Link
	for _, l := range snap.Links {
		if l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

type reach struct {
	id string
	n  int
}

// blastRadius lists platforms that reach at least one other, widest first.
func blastRadius(m map[string]int) []reach {
	var out []reach
	for id, n := range m {
		if n > 0 {
			out = append(out, reach{id, n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].id < out[j].id
	})
	return out
}
