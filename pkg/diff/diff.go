// Package diff compares layout snapshots so that consumers can redraw only
// what moved.
package diff

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/securely/surfacemap/pkg/model"
)

// Diff represents the difference between two snapshots
type Diff struct {
	AddedNodes    []model.Node `json:"addedNodes"`
	RemovedNodes  []string     `json:"removedNodes"`  // Node IDs
	MovedNodes    []NodeMove   `json:"movedNodes"`    // Same node, new position
	ModifiedNodes []model.Node `json:"modifiedNodes"` // Nodes with changed properties
	AddedLinks    []model.Link `json:"addedLinks"`
	RemovedLinks  []string     `json:"removedLinks"` // Link keys (source|target|kind)
	ChangedLinks  []LinkMove   `json:"changedLinks"` // Links with a moved endpoint
	FullGraph     bool         `json:"fullGraph"`    // True if this is a full snapshot, not a diff
}

// NodeMove is a position change of one node.
type NodeMove struct {
	ID   string         `json:"id"`
	From model.Position `json:"from"`
	To   model.Position `json:"to"`
}

// LinkMove is a link whose endpoint positions changed.
type LinkMove struct {
	Key  string        `json:"key"`
	From model.Segment `json:"from"`
	To   model.Segment `json:"to"`
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return !d.FullGraph &&
		len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 &&
		len(d.MovedNodes) == 0 && len(d.ModifiedNodes) == 0 &&
		len(d.AddedLinks) == 0 && len(d.RemovedLinks) == 0 &&
		len(d.ChangedLinks) == 0
}

// Frame is an indexed snapshot kept for diffing
type Frame struct {
	Hash     string
	Snapshot model.Snapshot
	nodes    map[string]model.Node
	segments map[string]model.Segment
}

// NewFrame indexes a snapshot for diffing.
func NewFrame(snap model.Snapshot) *Frame {
	f := &Frame{
		Snapshot: snap,
		nodes:    make(map[string]model.Node, len(snap.Nodes)),
		segments: make(map[string]model.Segment, len(snap.Links)),
	}
	for _, n := range snap.Nodes {
		f.nodes[n.ID] = n
	}
	for _, seg := range snap.Segments() {
		f.segments[LinkKey(seg.Link)] = seg
	}

	jsonData, _ := json.Marshal(snap)
	hash := sha256.Sum256(jsonData)
	f.Hash = fmt.Sprintf("%x", hash)
	return f
}

// Compute computes the difference between two snapshots.
func Compute(old, next model.Snapshot) Diff {
	return ComputeFrom(NewFrame(old), next)
}

// ComputeFrom diffs a new snapshot against a previous frame. Without a
// previous frame the whole snapshot is reported as added. Entries follow the
// order of the snapshots.
func ComputeFrom(old *Frame, snap model.Snapshot) Diff {
	if old == nil {
		return Diff{
			AddedNodes: snap.Nodes,
			AddedLinks: snap.Links,
			FullGraph:  true,
		}
	}

	d := Diff{
		AddedNodes:    make([]model.Node, 0),
		RemovedNodes:  make([]string, 0),
		MovedNodes:    make([]NodeMove, 0),
		ModifiedNodes: make([]model.Node, 0),
		AddedLinks:    make([]model.Link, 0),
		RemovedLinks:  make([]string, 0),
		ChangedLinks:  make([]LinkMove, 0),
	}

	present := make(map[string]bool, len(snap.Nodes))
	for _, n := range snap.Nodes {
		present[n.ID] = true
		prev, exists := old.nodes[n.ID]
		if !exists {
			d.AddedNodes = append(d.AddedNodes, n)
			continue
		}
		if prev.Position != n.Position {
			d.MovedNodes = append(d.MovedNodes, NodeMove{ID: n.ID, From: prev.Position, To: n.Position})
		}
		if !nodesEqual(prev, n) {
			d.ModifiedNodes = append(d.ModifiedNodes, n)
		}
	}
	for _, n := range old.Snapshot.Nodes {
		if !present[n.ID] {
			d.RemovedNodes = append(d.RemovedNodes, n.ID)
		}
	}

	keys := make(map[string]bool, len(snap.Links))
	for _, seg := range snap.Segments() {
		key := LinkKey(seg.Link)
		keys[key] = true
		prev, exists := old.segments[key]
		switch {
		case !exists:
			d.AddedLinks = append(d.AddedLinks, seg.Link)
		case prev.From != seg.From || prev.To != seg.To:
			d.ChangedLinks = append(d.ChangedLinks, LinkMove{Key: key, From: prev, To: seg})
		}
	}
	for _, l := range old.Snapshot.Links {
		if key := LinkKey(l); !keys[key] {
			d.RemovedLinks = append(d.RemovedLinks, key)
		}
	}
	return d
}

// LinkKey creates a unique key for a link
func LinkKey(l model.Link) string {
	return fmt.Sprintf("%s|%s|%s", l.Source, l.Target, l.Kind)
}

// nodesEqual checks if two nodes are equal (excluding position)
func nodesEqual(a, b model.Node) bool {
	// Position changes are reported as moves
	return a.ID == b.ID &&
		a.Label == b.Label &&
		a.Kind == b.Kind &&
		a.RiskLevel == b.RiskLevel &&
		a.Pinned == b.Pinned
}
