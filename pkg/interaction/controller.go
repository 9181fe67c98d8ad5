// Package interaction turns raw pointer events into layout engine calls.
package interaction

import (
	"math"

	"github.com/securely/surfacemap/pkg/layout"
	"github.com/securely/surfacemap/pkg/logging"
	"github.com/securely/surfacemap/pkg/model"
)

var log = logging.New("interaction")

// Engine is the part of the layout engine a Controller drives.
type Engine interface {
	Snapshot() (model.Snapshot, error)
	Bounds() layout.Box
	Pin(id string) error
	DragTo(id string, x, y float64) (layout.DragResult, error)
}

// Hit is the result of a pointer-down.
type Hit struct {
	ID       string `json:"id,omitempty"`
	Dragging bool   `json:"dragging"`
}

// Controller tracks one pointer gesture at a time. A node grabbed on
// pointer-down is pinned, follows the pointer while it moves and stays
// pinned where it was released.
type Controller struct {
	engine Engine

	active string
	offset model.Position
}

// NewController returns a controller for engine.
func NewController(engine Engine) *Controller {
	return &Controller{engine: engine}
}

// Active returns the id of the node being dragged, if any.
func (c *Controller) Active() (string, bool) {
	return c.active, c.active != ""
}

// PointerDown hit-tests (x, y) and pins the node under the pointer. The
// center can be hit but never grabbed.
func (c *Controller) PointerDown(x, y float64) (Hit, error) {
	c.active = ""
	snap, err := c.engine.Snapshot()
	if err != nil {
		return Hit{}, err
	}
	node, ok := HitTest(snap, x, y)
	if !ok {
		return Hit{}, nil
	}
	if !node.Draggable() {
		return Hit{ID: node.ID}, nil
	}
	if err := c.engine.Pin(node.ID); err != nil {
		return Hit{}, err
	}
	c.active = node.ID
	c.offset = model.Position{X: node.Position.X - x, Y: node.Position.Y - y}
	log.Debug("pointer down", "node", node.ID)
	return Hit{ID: node.ID, Dragging: true}, nil
}

// PointerMove drags the active node so that it keeps its offset from the
// pointer. It reports false when no node is being dragged.
func (c *Controller) PointerMove(x, y float64) (layout.DragResult, bool, error) {
	if c.active == "" {
		return layout.DragResult{}, false, nil
	}
	target := c.engine.Bounds().Clamp(model.Position{X: x + c.offset.X, Y: y + c.offset.Y})
	res, err := c.engine.DragTo(c.active, target.X, target.Y)
	if err != nil {
		c.active = ""
		return layout.DragResult{}, false, err
	}
	return res, true, nil
}

// PointerUp ends the gesture. The node stays pinned at its last position.
func (c *Controller) PointerUp() (string, bool) {
	id := c.active
	c.active = ""
	if id != "" {
		log.Debug("pointer up", "node", id)
	}
	return id, id != ""
}

// HitTest returns the node whose disc contains (x, y), nearest first. Nodes
// are scanned front to back, so on equal distance the most recently added
// node wins.
func HitTest(snap model.Snapshot, x, y float64) (model.Node, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i := len(snap.Nodes) - 1; i >= 0; i-- {
		n := snap.Nodes[i]
		d := math.Hypot(n.Position.X-x, n.Position.Y-y)
		if d <= n.Radius && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return model.Node{}, false
	}
	return snap.Nodes[best], true
}
