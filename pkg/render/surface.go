package render

import (
	"sync"

	"github.com/securely/surfacemap/pkg/layout"
	"github.com/securely/surfacemap/pkg/model"
)

// ItemKind is the primitive of a display list entry.
type ItemKind string

const (
	ItemCircle ItemKind = "circle"
	ItemLine   ItemKind = "line"
	ItemText   ItemKind = "text"
)

// Item is one retained drawing primitive. Lines use both endpoints; circles
// and text use X1/Y1.
type Item struct {
	Kind   ItemKind `json:"kind"`
	Key    string   `json:"key"`
	X1     float64  `json:"x1"`
	Y1     float64  `json:"y1"`
	X2     float64  `json:"x2,omitempty"`
	Y2     float64  `json:"y2,omitempty"`
	R      float64  `json:"r,omitempty"`
	Fill   string   `json:"fill,omitempty"`
	Stroke string   `json:"stroke,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Surface is a retained-mode renderer: DrawGraph builds a display list once
// and Apply patches only the items a layout change touched.
type Surface struct {
	mu        sync.Mutex
	items     []Item
	nodeItems map[string][]int
	linkItems map[int]int
	redraws   int
	patches   int
}

// NewSurface returns an empty surface.
func NewSurface() *Surface {
	return &Surface{}
}

func (s *Surface) DrawGraph(snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = s.items[:0]
	s.nodeItems = make(map[string][]int, len(snap.Nodes))
	s.linkItems = make(map[int]int, len(snap.Links))

	for _, seg := range snap.Segments() {
		s.linkItems[seg.Index] = len(s.items)
		s.items = append(s.items, Item{
			Kind:   ItemLine,
			Key:    seg.Link.Source + "->" + seg.Link.Target,
			X1:     seg.From.X,
			Y1:     seg.From.Y,
			X2:     seg.To.X,
			Y2:     seg.To.Y,
			Stroke: StyleOf(seg.Link.Kind).Color,
		})
	}
	for _, n := range snap.Nodes {
		s.nodeItems[n.ID] = []int{len(s.items), len(s.items) + 1}
		s.items = append(s.items,
			Item{Kind: ItemCircle, Key: n.ID, X1: n.Position.X, Y1: n.Position.Y, R: n.Radius, Fill: fillOf(n), Stroke: RiskColor(n.RiskLevel)},
			Item{Kind: ItemText, Key: n.ID, X1: n.Position.X, Y1: n.Position.Y + n.Radius + 14, Text: n.Label, R: n.Radius},
		)
	}
	s.redraws++
	return nil
}

// Apply moves the items of the nodes and links listed in ch and returns how
// many items changed. A disposed layout clears the surface.
func (s *Surface) Apply(ch layout.Change) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch.Kind == layout.ChangeDisposed {
		s.items = nil
		s.nodeItems = nil
		s.linkItems = nil
		return 0
	}

	changed := 0
	for _, ns := range ch.Nodes {
		for _, i := range s.nodeItems[ns.ID] {
			it := &s.items[i]
			switch it.Kind {
			case ItemCircle:
				it.X1, it.Y1 = ns.Position.X, ns.Position.Y
			case ItemText:
				it.X1, it.Y1 = ns.Position.X, ns.Position.Y+it.R+14
			}
			changed++
		}
	}
	for _, le := range ch.Links {
		i, ok := s.linkItems[le.Index]
		if !ok {
			continue
		}
		it := &s.items[i]
		it.X1, it.Y1, it.X2, it.Y2 = le.From.X, le.From.Y, le.To.X, le.To.Y
		changed++
	}
	if changed > 0 {
		s.patches++
	}
	return changed
}

// Items returns a copy of the display list in paint order: links first.
func (s *Surface) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

// Stats returns how many full redraws and incremental patches were applied.
func (s *Surface) Stats() (redraws, patches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redraws, s.patches
}
