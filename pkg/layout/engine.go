package layout

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/securely/surfacemap/pkg/logging"
	"github.com/securely/surfacemap/pkg/model"
)

var log = logging.New("layout")

// State is the lifecycle stage of an Engine.
type State int

const (
	StateEmpty State = iota
	StateBuilt
	StatePlaced
	StateInteractive
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilt:
		return "built"
	case StatePlaced:
		return "placed"
	case StateInteractive:
		return "interactive"
	case StateDisposed:
		return "disposed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type body struct {
	node   *model.Node
	pos    r2.Vec
	vel    r2.Vec
	radius float64
	pinned bool
}

// Engine owns the positions of one graph: it places nodes on deterministic
// rings, relaxes them with a bounded force simulation and applies user drags.
// Every committed change is written back into the graph nodes and announced to
// OnChange listeners.
//
// An Engine is not safe for concurrent use, except for CancelRelax.
type Engine struct {
	cfg   Config
	state State

	graph    *model.Graph
	bodies   []*body
	index    map[string]int
	links    []model.Link
	incident map[string][]int
	center   r2.Vec

	listeners    []listener
	nextListener int
	seq          uint64

	run      *RelaxRun
	observer Observer
}

// NewEngine returns an empty engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, state: StateEmpty}, nil
}

// SetObserver installs an observer for relax and drag activity.
func (e *Engine) SetObserver(o Observer) { e.observer = o }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// State returns the current lifecycle stage.
func (e *Engine) State() State { return e.state }

// Bounds returns the box user drags are clamped to.
func (e *Engine) Bounds() Box { return e.cfg.Bounds() }

// Load takes ownership of positions for g. It is only valid on an empty engine.
func (e *Engine) Load(g *model.Graph) error {
	if e.state != StateEmpty {
		return fmt.Errorf("%w: load in state %s", model.ErrEngineState, e.state)
	}
	if g == nil || g.Center() == nil {
		return fmt.Errorf("%w: graph has no center node", model.ErrInvalidInput)
	}

	nodes := g.Nodes()
	e.graph = g
	e.bodies = make([]*body, len(nodes))
	e.index = make(map[string]int, len(nodes))
	for i, n := range nodes {
		e.bodies[i] = &body{
			node:   n,
			radius: n.Radius,
			pinned: n.Pinned || n.Kind == model.NodeCenter,
		}
		e.index[n.ID] = i
	}
	e.links = g.Links()
	e.incident = make(map[string][]int, len(nodes))
	for i, l := range e.links {
		e.incident[l.Source] = append(e.incident[l.Source], i)
		if l.Target != l.Source {
			e.incident[l.Target] = append(e.incident[l.Target], i)
		}
	}
	e.state = StateBuilt
	log.Debug("graph loaded", "nodes", len(nodes), "links", len(e.links))
	return nil
}

// Place computes the initial deterministic placement: the center at the
// canvas center, platforms evenly spaced on the platform ring and potential
// targets on the target ring, each kind starting at angle zero.
func (e *Engine) Place() error {
	if e.state != StateBuilt {
		return fmt.Errorf("%w: place in state %s", model.ErrEngineState, e.state)
	}
	e.center = r2.Vec{X: e.cfg.Width / 2, Y: e.cfg.Height / 2}

	var platforms, targets []*body
	for _, b := range e.bodies {
		switch b.node.Kind {
		case model.NodeCenter:
			b.pos = e.center
		case model.NodePlatform:
			platforms = append(platforms, b)
		case model.NodePotentialTarget:
			targets = append(targets, b)
		}
		b.vel = r2.Vec{}
	}
	e.placeRing(platforms, e.cfg.Ring())
	e.placeRing(targets, e.cfg.TargetRadius())

	e.state = StatePlaced
	e.commitAll(ChangePlaced)
	log.Debug("nodes placed", "platforms", len(platforms), "targets", len(targets), "ring", e.cfg.Ring())
	return nil
}

func (e *Engine) placeRing(bodies []*body, radius float64) {
	n := float64(len(bodies))
	for i, b := range bodies {
		theta := 2 * math.Pi * float64(i) / n
		b.pos = r2.Add(e.center, r2.Scale(radius, r2.Vec{X: math.Cos(theta), Y: math.Sin(theta)}))
	}
}

// Position returns the committed position of a node.
func (e *Engine) Position(id string) (model.Position, error) {
	b, err := e.lookup(id)
	if err != nil {
		return model.Position{}, err
	}
	return toPosition(b.pos), nil
}

// Snapshot returns an ordered copy of the committed state.
func (e *Engine) Snapshot() (model.Snapshot, error) {
	if e.state == StateEmpty || e.state == StateDisposed {
		return model.Snapshot{}, fmt.Errorf("%w: snapshot in state %s", model.ErrEngineState, e.state)
	}
	snap := model.Snapshot{
		Email:  e.graph.Email,
		Width:  e.cfg.Width,
		Height: e.cfg.Height,
		Nodes:  make([]model.Node, len(e.bodies)),
		Links:  append([]model.Link(nil), e.links...),
	}
	for i, b := range e.bodies {
		n := *b.node
		if b.node.Breach != nil {
			info := *b.node.Breach
			info.Dates = append([]string(nil), info.Dates...)
			info.DataTypes = append([]string(nil), info.DataTypes...)
			n.Breach = &info
		}
		snap.Nodes[i] = n
	}
	return snap, nil
}

// OnChange registers fn for change notifications and returns a function that
// removes it. Listeners run synchronously in registration order.
func (e *Engine) OnChange(fn func(Change)) (unsubscribe func()) {
	id := e.nextListener
	e.nextListener++
	e.listeners = append(e.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// Dispose cancels any relaxation, notifies listeners and releases the graph.
// Calling it again is a no-op.
func (e *Engine) Dispose() {
	if e.state == StateDisposed {
		return
	}
	e.CancelRelax()
	e.run = nil
	e.state = StateDisposed
	e.emit(Change{Kind: ChangeDisposed})
	e.listeners = nil
	e.graph = nil
	e.bodies = nil
	e.index = nil
	e.links = nil
	e.incident = nil
}

func (e *Engine) lookup(id string) (*body, error) {
	if e.state == StateEmpty || e.state == StateDisposed {
		return nil, fmt.Errorf("%w: node lookup in state %s", model.ErrEngineState, e.state)
	}
	i, ok := e.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownNode, id)
	}
	return e.bodies[i], nil
}

// interact checks that the engine accepts user or relaxation input and moves
// it to the interactive state.
func (e *Engine) interact(op string) error {
	if e.state != StatePlaced && e.state != StateInteractive {
		return fmt.Errorf("%w: %s in state %s", model.ErrEngineState, op, e.state)
	}
	e.state = StateInteractive
	return nil
}

func (e *Engine) commit(b *body) NodeState {
	b.node.Position = toPosition(b.pos)
	b.node.Pinned = b.pinned
	return NodeState{ID: b.node.ID, Position: b.node.Position, Pinned: b.pinned}
}

func (e *Engine) commitAll(kind ChangeKind) {
	ch := Change{Kind: kind, Nodes: make([]NodeState, len(e.bodies))}
	for i, b := range e.bodies {
		ch.Nodes[i] = e.commit(b)
	}
	ch.Links = e.endpoints(allIndices(len(e.links)))
	e.emit(ch)
}

func (e *Engine) endpoints(indices []int) []LinkEndpoints {
	out := make([]LinkEndpoints, 0, len(indices))
	for _, i := range indices {
		l := e.links[i]
		out = append(out, LinkEndpoints{
			Index:  i,
			Source: l.Source,
			Target: l.Target,
			From:   toPosition(e.bodies[e.index[l.Source]].pos),
			To:     toPosition(e.bodies[e.index[l.Target]].pos),
		})
	}
	return out
}

func (e *Engine) emit(ch Change) {
	e.seq++
	ch.Seq = e.seq
	for _, l := range append([]listener(nil), e.listeners...) {
		l.fn(ch)
	}
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func toPosition(v r2.Vec) model.Position { return model.Position{X: v.X, Y: v.Y} }

func toVec(p model.Position) r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }
