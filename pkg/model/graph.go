package model

import (
	"encoding/json"
	"fmt"
)

// Graph is the attack surface graph: an id-keyed node arena with preserved
// insertion order plus an ordered list of links that refer to nodes by id.
// A Graph is built once and replaced wholesale on re-analysis.
type Graph struct {
	Email string

	nodes map[string]*Node
	order []string
	links []Link
}

// NewGraph creates a new empty graph for the given identity.
func NewGraph(email string) *Graph {
	return &Graph{
		Email: email,
		nodes: make(map[string]*Node),
		order: make([]string, 0),
		links: make([]Link, 0),
	}
}

// AddNode adds a node to the graph. Node ids are unique.
func (g *Graph) AddNode(node *Node) error {
	if node.ID == "" {
		return fmt.Errorf("%w: node id is empty", ErrInvalidInput)
	}
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("%w: duplicate node id %q", ErrInvalidInput, node.ID)
	}
	if node.Kind == NodeCenter {
		if c := g.Center(); c != nil {
			return fmt.Errorf("%w: graph already has center node %q", ErrInvalidInput, c.ID)
		}
		node.Pinned = true
	}
	g.nodes[node.ID] = node
	g.order = append(g.order, node.ID)
	return nil
}

// AddLink appends a link. Both endpoints must already exist.
func (g *Graph) AddLink(link Link) error {
	if _, ok := g.nodes[link.Source]; !ok {
		return fmt.Errorf("%w: link source %q", ErrUnknownNode, link.Source)
	}
	if _, ok := g.nodes[link.Target]; !ok {
		return fmt.Errorf("%w: link target %q", ErrUnknownNode, link.Target)
	}
	g.links = append(g.links, link)
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether id is present.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Center returns the center node, or nil for a graph without one.
func (g *Graph) Center() *Node {
	for _, id := range g.order {
		if n := g.nodes[id]; n.Kind == NodeCenter {
			return n
		}
	}
	return nil
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodesOfKind returns the nodes of one kind in insertion order.
func (g *Graph) NodesOfKind(kind NodeKind) []*Node {
	var out []*Node
	for _, id := range g.order {
		if n := g.nodes[id]; n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Links returns a copy of the links in insertion order.
func (g *Graph) Links() []Link {
	out := make([]Link, len(g.links))
	copy(out, g.links)
	return out
}

// LinksOfKind returns the links of one kind in insertion order.
func (g *Graph) LinksOfKind(kind LinkKind) []Link {
	var out []Link
	for _, l := range g.links {
		if l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

// HasLink reports whether a link of the given kind exists between source and target.
func (g *Graph) HasLink(source, target string, kind LinkKind) bool {
	for _, l := range g.links {
		if l.Source == source && l.Target == target && l.Kind == kind {
			return true
		}
	}
	return false
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

type graphJSON struct {
	Email string  `json:"email"`
	Nodes []*Node `json:"nodes"`
	Links []Link  `json:"links"`
}

// MarshalJSON encodes nodes as an ordered array.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphJSON{Email: g.Email, Nodes: g.Nodes(), Links: g.links})
}
