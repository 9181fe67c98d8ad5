package layout

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/securely/surfacemap/pkg/model"
)

// DragTo moves a node to (x, y), clamped to the drag box, and pins it there.
// Only the dragged node and its incident links change. Any active
// relaxation is cancelled. Dragging the center is accepted but does nothing.
func (e *Engine) DragTo(id string, x, y float64) (DragResult, error) {
	b, err := e.lookup(id)
	if err != nil {
		return DragResult{}, err
	}
	if err := e.interact("drag"); err != nil {
		return DragResult{}, err
	}
	if !b.node.Draggable() {
		return DragResult{Node: NodeState{ID: id, Position: toPosition(b.pos), Pinned: b.pinned}}, nil
	}
	e.CancelRelax()

	b.pos = toVec(e.cfg.Bounds().Clamp(model.Position{X: x, Y: y}))
	b.vel = r2.Vec{}
	b.pinned = true
	res := DragResult{
		Moved: true,
		Node:  e.commit(b),
		Links: e.endpoints(e.incident[id]),
	}
	e.emit(Change{Kind: ChangeDragged, Nodes: []NodeState{res.Node}, Links: res.Links})
	if e.observer != nil {
		e.observer.NodeDragged()
	}
	return res, nil
}

// Pin fixes a node at its current position. Pinning the center is a no-op.
func (e *Engine) Pin(id string) error {
	b, err := e.lookup(id)
	if err != nil {
		return err
	}
	if err := e.interact("pin"); err != nil {
		return err
	}
	if b.pinned {
		return nil
	}
	e.CancelRelax()
	b.pinned = true
	b.vel = r2.Vec{}
	e.emit(Change{Kind: ChangePinned, Nodes: []NodeState{e.commit(b)}})
	return nil
}

// Unpin releases a node to the simulation without moving it. The center
// cannot be unpinned.
func (e *Engine) Unpin(id string) error {
	b, err := e.lookup(id)
	if err != nil {
		return err
	}
	if err := e.interact("unpin"); err != nil {
		return err
	}
	if b.node.Kind == model.NodeCenter {
		return fmt.Errorf("%w: the center node is always pinned", model.ErrInvalidInput)
	}
	if !b.pinned {
		return nil
	}
	b.pinned = false
	e.emit(Change{Kind: ChangeUnpinned, Nodes: []NodeState{e.commit(b)}})
	return nil
}

// Pinned reports whether a node is pinned.
func (e *Engine) Pinned(id string) (bool, error) {
	b, err := e.lookup(id)
	if err != nil {
		return false, err
	}
	return b.pinned, nil
}
