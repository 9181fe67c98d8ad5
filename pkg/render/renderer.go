// Package render draws layout snapshots. Every renderer consumes the same
// read-only model.Snapshot, so one engine can feed any number of them.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/securely/surfacemap/pkg/model"
)

// Renderer draws a committed layout.
type Renderer interface {
	DrawGraph(snap model.Snapshot) error
}

// Format names an output format.
type Format string

const (
	FormatSVG  Format = "svg"
	FormatHTML Format = "html"
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// Formats lists the formats New accepts.
var Formats = []Format{FormatSVG, FormatHTML, FormatDOT, FormatJSON}

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown render format %q", model.ErrInvalidInput, s)
}

// ContentType returns the HTTP content type of a format.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/json"
	}
	return "text/vnd.graphviz; charset=utf-8"
}

// New returns a renderer writing f to w. opts may carry the risk summary
// shown by the HTML page.
func New(f Format, w io.Writer, opts Options) (Renderer, error) {
	switch f {
	case FormatSVG:
		return &SVGRenderer{w: w, opts: opts}, nil
	case FormatHTML:
		return &HTMLRenderer{w: w, opts: opts}, nil
	case FormatDOT:
		return &DOTRenderer{w: w}, nil
	case FormatJSON:
		return &JSONExporter{w: w, now: opts.Now}, nil
	}
	return nil, fmt.Errorf("%w: unknown render format %q", model.ErrInvalidInput, f)
}
