// Package graph projects the attack surface onto a gonum directed graph so
// that standard graph algorithms can run over lateral-movement paths.
package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/securely/surfacemap/pkg/model"
)

// AttackGraph is the directed graph of attacker movement between nodes.
// gonum ids follow the insertion order of the source graph.
type AttackGraph struct {
	graph *simple.DirectedGraph
	ids   map[string]int64
	names []string
}

// DefaultKinds are the link kinds that describe movement between platforms.
var DefaultKinds = []model.LinkKind{model.LinkLateralMovement, model.LinkPotentialAttack}

// NewAttackGraph projects every non-center node of g and the links of the
// given kinds. With no kinds, DefaultKinds are used.
func NewAttackGraph(g *model.Graph, kinds ...model.LinkKind) *AttackGraph {
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	ag := &AttackGraph{
		graph: simple.NewDirectedGraph(),
		ids:   make(map[string]int64),
	}

	for _, n := range g.Nodes() {
		if n.Kind == model.NodeCenter {
			continue
		}
		ag.addNode(n.ID)
	}

	wanted := make(map[model.LinkKind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}
	for _, l := range g.Links() {
		if !wanted[l.Kind] {
			continue
		}
		ag.AddEdge(l.Source, l.Target)
	}
	return ag
}

func (ag *AttackGraph) addNode(name string) int64 {
	if id, ok := ag.ids[name]; ok {
		return id
	}
	id := int64(len(ag.names))
	ag.ids[name] = id
	ag.names = append(ag.names, name)
	ag.graph.AddNode(simple.Node(id))
	return id
}

// AddEdge adds a directed edge, ignoring self loops and endpoints that are
// not part of the projection.
func (ag *AttackGraph) AddEdge(from, to string) {
	fid, ok := ag.ids[from]
	if !ok {
		return
	}
	tid, ok := ag.ids[to]
	if !ok || fid == tid {
		return
	}
	if !ag.graph.HasEdgeFromTo(fid, tid) {
		ag.graph.SetEdge(ag.graph.NewEdge(ag.graph.Node(fid), ag.graph.Node(tid)))
	}
}

// Graph returns the underlying directed graph
func (ag *AttackGraph) Graph() *simple.DirectedGraph {
	return ag.graph
}

// ID returns the gonum id of a node.
func (ag *AttackGraph) ID(name string) (int64, bool) {
	id, ok := ag.ids[name]
	return id, ok
}

// Name returns the node id for a gonum id.
func (ag *AttackGraph) Name(id int64) string {
	if id < 0 || int(id) >= len(ag.names) {
		return ""
	}
	return ag.names[id]
}

// Names returns the projected node ids in insertion order.
func (ag *AttackGraph) Names() []string {
	return append([]string(nil), ag.names...)
}

// Successors returns the direct targets of name in insertion order.
func (ag *AttackGraph) Successors(name string) []string {
	id, ok := ag.ids[name]
	if !ok {
		return nil
	}
	var ids []int64
	iter := ag.graph.From(id)
	for iter.Next() {
		ids = append(ids, iter.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, ag.names[id])
	}
	return out
}

// EdgeCount returns the number of directed edges.
func (ag *AttackGraph) EdgeCount() int {
	return ag.graph.Edges().Len()
}
