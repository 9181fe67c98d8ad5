package model

// Snapshot is a read-only, ordered copy of the committed layout state.
type Snapshot struct {
	Email  string  `json:"email"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Nodes  []Node  `json:"nodes"`
	Links  []Link  `json:"links"`
}

// Segment is a link resolved to the committed positions of its endpoints.
type Segment struct {
	Index int      `json:"index"`
	Link  Link     `json:"link"`
	From  Position `json:"from"`
	To    Position `json:"to"`
}

// Node looks up a node of the snapshot by id.
func (s Snapshot) Node(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Segments resolves every link to its endpoint positions, in link order.
func (s Snapshot) Segments() []Segment {
	pos := make(map[string]Position, len(s.Nodes))
	for _, n := range s.Nodes {
		pos[n.ID] = n.Position
	}
	out := make([]Segment, 0, len(s.Links))
	for i, l := range s.Links {
		out = append(out, Segment{Index: i, Link: l, From: pos[l.Source], To: pos[l.Target]})
	}
	return out
}
