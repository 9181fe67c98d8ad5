package render

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/securely/surfacemap/pkg/model"
)

// SVGRenderer writes a standalone SVG document.
type SVGRenderer struct {
	w    io.Writer
	opts Options
}

// NewSVGRenderer returns a renderer writing SVG to w.
func NewSVGRenderer(w io.Writer, opts Options) *SVGRenderer {
	return &SVGRenderer{w: w, opts: opts}
}

func (r *SVGRenderer) DrawGraph(snap model.Snapshot) error {
	var b bytes.Buffer
	writeSVG(&b, snap, r.opts.Title)
	_, err := r.w.Write(b.Bytes())
	return err
}

func writeSVG(b *bytes.Buffer, snap model.Snapshot, title string) {
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g" class="surface-map">`+"\n",
		snap.Width, snap.Height, snap.Width, snap.Height)
	if title != "" {
		fmt.Fprintf(b, "  <title>%s</title>\n", html.EscapeString(title))
	}

	b.WriteString(`  <g class="links">` + "\n")
	for _, seg := range snap.Segments() {
		style := StyleOf(seg.Link.Kind)
		fmt.Fprintf(b, `    <line data-index="%d" data-source="%s" data-target="%s" class="link link-%s" x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="%g"`,
			seg.Index, html.EscapeString(seg.Link.Source), html.EscapeString(seg.Link.Target), seg.Link.Kind,
			seg.From.X, seg.From.Y, seg.To.X, seg.To.Y, style.Color, style.Width)
		if style.Dash != "" {
			fmt.Fprintf(b, ` stroke-dasharray="%s"`, style.Dash)
		}
		b.WriteString(" />\n")
	}
	b.WriteString("  </g>\n")

	b.WriteString(`  <g class="nodes">` + "\n")
	for _, n := range snap.Nodes {
		class := "node node-" + string(n.Kind)
		if n.Pinned {
			class += " pinned"
		}
		fmt.Fprintf(b, `    <g class="%s" data-id="%s" data-risk="%s">`+"\n", class, html.EscapeString(n.ID), n.RiskLevel)
		fmt.Fprintf(b, `      <circle cx="%.1f" cy="%.1f" r="%g" fill="%s" stroke="%s" stroke-width="2" />`+"\n",
			n.Position.X, n.Position.Y, n.Radius, fillOf(n), RiskColor(n.RiskLevel))
		if n.Icon != "" {
			fmt.Fprintf(b, `      <text x="%.1f" y="%.1f" text-anchor="middle" dominant-baseline="central">%s</text>`+"\n",
				n.Position.X, n.Position.Y, html.EscapeString(n.Icon))
		}
		fmt.Fprintf(b, `      <text x="%.1f" y="%.1f" text-anchor="middle" class="label">%s</text>`+"\n",
			n.Position.X, n.Position.Y+n.Radius+14, html.EscapeString(n.Label))
		b.WriteString("    </g>\n")
	}
	b.WriteString("  </g>\n</svg>\n")
}
