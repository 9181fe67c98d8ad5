package render

import (
	"bytes"
	"html/template"
	"io"

	"github.com/securely/surfacemap/pkg/model"
	"github.com/securely/surfacemap/pkg/risk"
)

// HTMLRenderer writes a self-contained page: the SVG map next to the risk
// summary and a node table.
type HTMLRenderer struct {
	w    io.Writer
	opts Options
}

// NewHTMLRenderer returns a renderer writing an HTML page to w.
func NewHTMLRenderer(w io.Writer, opts Options) *HTMLRenderer {
	return &HTMLRenderer{w: w, opts: opts}
}

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

type pageData struct {
	Title   string
	Email   string
	SVG     template.HTML
	Summary *risk.Summary
	Nodes   []model.Node
}

func (r *HTMLRenderer) DrawGraph(snap model.Snapshot) error {
	var svg bytes.Buffer
	writeSVG(&svg, snap, "")

	title := r.opts.Title
	if title == "" {
		title = "Attack surface for " + snap.Email
	}
	data := pageData{
		Title:   title,
		Email:   snap.Email,
		SVG:     template.HTML(svg.String()),
		Summary: r.opts.Summary,
	}
	for _, n := range snap.Nodes {
		if n.Kind != model.NodeCenter {
			data.Nodes = append(data.Nodes, n)
		}
	}

	var page bytes.Buffer
	if err := pageTemplate.Execute(&page, data); err != nil {
		return err
	}
	_, err := r.w.Write(page.Bytes())
	return err
}

const pageHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: #f8f9fa; color: #212529; margin: 0; }
    header { padding: 16px 24px; background: #4f46e5; color: #fff; }
    main { display: flex; gap: 24px; padding: 24px; }
    .map { background: #fff; border-radius: 8px; box-shadow: 0 1px 3px rgba(0,0,0,.15); }
    .side { min-width: 280px; }
    table { border-collapse: collapse; width: 100%; }
    td, th { padding: 4px 8px; border-bottom: 1px solid #dee2e6; text-align: left; }
    .risk-critical { color: #dc3545; } .risk-high { color: #fd7e14; }
    .risk-medium { color: #b38600; } .risk-low { color: #198754; }
  </style>
</head>
<body>
  <header><h1>{{.Title}}</h1></header>
  <main>
    <div class="map">{{.SVG}}</div>
    <div class="side">
      {{with .Summary}}
      <h2>Risk score: {{.Total}}/100</h2>
      <p class="risk-{{.ThreatLevel}}">Threat level: {{.ThreatLevel}}</p>
      <table>
        <tr><th>Critical</th><td>{{.Histogram.Critical}}</td></tr>
        <tr><th>High</th><td>{{.Histogram.High}}</td></tr>
        <tr><th>Medium</th><td>{{.Histogram.Medium}}</td></tr>
        <tr><th>Low</th><td>{{.Histogram.Low}}</td></tr>
      </table>
      {{if .Categories}}<p>Categories: {{range $i, $c := .Categories}}{{if $i}}, {{end}}{{$c}}{{end}}</p>{{end}}
      {{if .ReuseCycles}}<p>Credential reuse loops: {{len .ReuseCycles}}</p>{{end}}
      {{end}}
      <h2>Platforms</h2>
      <table>
        <tr><th></th><th>Platform</th><th>Category</th><th>Risk</th></tr>
        {{range .Nodes}}<tr class="node-{{.Kind}}"><td>{{.Icon}}</td><td>{{.Label}}</td><td>{{.Category}}</td><td class="risk-{{.RiskLevel}}">{{.RiskLevel}}</td></tr>
        {{end}}
      </table>
    </div>
  </main>
</body>
</html>
`
