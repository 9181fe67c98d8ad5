package render

import (
	"encoding/json"
	"io"
	"time"

	"github.com/securely/surfacemap/pkg/model"
)

// Export is the JSON document written by JSONExporter.
type Export struct {
	Email     string         `json:"email"`
	Timestamp time.Time      `json:"timestamp"`
	Nodes     []ExportedNode `json:"nodes"`
	Links     []model.Link   `json:"links"`
}

// ExportedNode is the flattened node shape of an export.
type ExportedNode struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Type     model.NodeKind  `json:"type"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
	Risk     model.RiskLevel `json:"risk"`
	Category string          `json:"category"`
	Pinned   bool            `json:"pinned"`
}

// JSONExporter writes the snapshot as an indented Export document.
type JSONExporter struct {
	w   io.Writer
	now func() time.Time
}

// NewJSONExporter returns an exporter writing to w. now may be nil.
func NewJSONExporter(w io.Writer, now func() time.Time) *JSONExporter {
	return &JSONExporter{w: w, now: now}
}

func (e *JSONExporter) DrawGraph(snap model.Snapshot) error {
	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	return enc.Encode(e.Export(snap))
}

// Export converts a snapshot without writing it.
func (e *JSONExporter) Export(snap model.Snapshot) Export {
	now := time.Now
	if e.now != nil {
		now = e.now
	}
	out := Export{
		Email:     snap.Email,
		Timestamp: now().UTC(),
		Nodes:     make([]ExportedNode, 0, len(snap.Nodes)),
		Links:     snap.Links,
	}
	if out.Links == nil {
		out.Links = []model.Link{}
	}
	for _, n := range snap.Nodes {
		out.Nodes = append(out.Nodes, ExportedNode{
			ID:       n.ID,
			Label:    n.Label,
			Type:     n.Kind,
			X:        n.Position.X,
			Y:        n.Position.Y,
			Risk:     n.RiskLevel,
			Category: n.Category,
			Pinned:   n.Pinned,
		})
	}
	return out
}
