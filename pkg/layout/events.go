package layout

import "github.com/securely/surfacemap/pkg/model"

// ChangeKind names what produced a change notification.
type ChangeKind string

const (
	ChangePlaced   ChangeKind = "placed"
	ChangeRelaxed  ChangeKind = "relaxed"
	ChangeDragged  ChangeKind = "dragged"
	ChangePinned   ChangeKind = "pinned"
	ChangeUnpinned ChangeKind = "unpinned"
	ChangeDisposed ChangeKind = "disposed"
)

// NodeState is the committed placement of one node.
type NodeState struct {
	ID       string         `json:"id"`
	Position model.Position `json:"position"`
	Pinned   bool           `json:"pinned"`
}

// LinkEndpoints is a link, by index into the graph's link list, resolved to
// committed positions.
type LinkEndpoints struct {
	Index  int            `json:"index"`
	Source string         `json:"source"`
	Target string         `json:"target"`
	From   model.Position `json:"from"`
	To     model.Position `json:"to"`
}

// Change is delivered to OnChange listeners after positions are committed.
// Only the nodes and links that moved are listed.
type Change struct {
	Kind  ChangeKind      `json:"kind"`
	Seq   uint64          `json:"seq"`
	Nodes []NodeState     `json:"nodes"`
	Links []LinkEndpoints `json:"links"`
}

// DragResult reports the outcome of a drag step.
type DragResult struct {
	Moved bool            `json:"moved"`
	Node  NodeState       `json:"node"`
	Links []LinkEndpoints `json:"links"`
}

// Observer receives engine activity, typically for metrics.
type Observer interface {
	RelaxFinished(RelaxResult)
	NodeDragged()
}

type listener struct {
	id int
	fn func(Change)
}
