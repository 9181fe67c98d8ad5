package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/securely/surfacemap/pkg/model"
)

const dotGraphName = "surfacemap"

// DOTRenderer writes a Graphviz digraph with fixed node positions, suitable
// for `neato -n`.
type DOTRenderer struct {
	w io.Writer
}

// NewDOTRenderer returns a renderer writing DOT to w.
func NewDOTRenderer(w io.Writer) *DOTRenderer {
	return &DOTRenderer{w: w}
}

func (r *DOTRenderer) DrawGraph(snap model.Snapshot) error {
	g, err := BuildDOT(snap)
	if err != nil {
		return err
	}
	_, err = io.WriteString(r.w, g.String())
	return err
}

// BuildDOT converts a snapshot to a gographviz graph. Positions are flipped
// to Graphviz's bottom-left origin.
func BuildDOT(snap model.Snapshot) (*gographviz.Graph, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(dotGraphName); err != nil {
		return nil, err
	}
	if err := g.SetDir(true); err != nil {
		return nil, err
	}
	if err := g.AddAttr(dotGraphName, "layout", "neato"); err != nil {
		return nil, err
	}

	for _, n := range snap.Nodes {
		attrs := map[string]string{
			"label":     strconv.Quote(nodeLabel(n)),
			"shape":     "circle",
			"style":     "filled",
			"fillcolor": strconv.Quote(fillOf(n)),
			"color":     strconv.Quote(RiskColor(n.RiskLevel)),
			"pos":       strconv.Quote(fmt.Sprintf("%.1f,%.1f!", n.Position.X, snap.Height-n.Position.Y)),
		}
		if err := g.AddNode(dotGraphName, strconv.Quote(n.ID), attrs); err != nil {
			return nil, fmt.Errorf("add node %s: %w", n.ID, err)
		}
	}

	for _, l := range snap.Links {
		style := StyleOf(l.Kind)
		attrs := map[string]string{
			"color":    strconv.Quote(style.Color),
			"penwidth": strconv.FormatFloat(style.Width, 'g', -1, 64),
			"label":    strconv.Quote(string(l.Kind)),
		}
		if style.Dash != "" {
			attrs["style"] = "dashed"
		}
		if err := g.AddEdge(strconv.Quote(l.Source), strconv.Quote(l.Target), true, attrs); err != nil {
			return nil, fmt.Errorf("add link %s -> %s: %w", l.Source, l.Target, err)
		}
	}
	return g, nil
}

func nodeLabel(n model.Node) string {
	if n.Icon == "" {
		return n.Label
	}
	return n.Icon + " " + n.Label
}
