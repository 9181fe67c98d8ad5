// Package view hosts attack surface sessions: one graph, one layout engine
// and the interaction state around it, rebuilt wholesale on re-analysis.
package view

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/securely/surfacemap/pkg/builder"
	"github.com/securely/surfacemap/pkg/diff"
	"github.com/securely/surfacemap/pkg/interaction"
	"github.com/securely/surfacemap/pkg/layout"
	"github.com/securely/surfacemap/pkg/logging"
	"github.com/securely/surfacemap/pkg/model"
	"github.com/securely/surfacemap/pkg/pubsub"
	"github.com/securely/surfacemap/pkg/render"
	"github.com/securely/surfacemap/pkg/risk"
)

var log = logging.New("view")

// Frame is published on the session's layout topic after every committed
// change. Diff is computed against the previous frame.
type Frame struct {
	SessionID string        `json:"sessionId"`
	Change    layout.Change `json:"change"`
	Diff      diff.Diff     `json:"diff"`
	Hash      string        `json:"hash,omitempty"`
}

// Options configures new sessions.
type Options struct {
	Layout  layout.Config
	Builder *builder.Builder
	// Targets are the potential targets added to every graph. Nil disables them.
	Targets   []builder.Target
	Publisher pubsub.Publisher
	Observer  layout.Observer
	// BatchPause is slept between relaxation batches, with the lock released.
	BatchPause time.Duration
}

// DefaultOptions returns options with the default layout, builder and targets.
func DefaultOptions() Options {
	return Options{
		Layout:  layout.DefaultConfig(),
		Builder: builder.New(builder.DefaultOptions()),
		Targets: builder.DefaultTargets,
	}
}

// Session owns the current graph of one analysed identity. All methods are
// safe for concurrent use; relaxation releases the lock between batches so
// pointer input can cancel it.
type Session struct {
	id      string
	opts    Options
	created time.Time

	mu          sync.Mutex
	email       string
	records     []model.BreachRecord
	graph       *model.Graph
	engine      *layout.Engine
	controller  *interaction.Controller
	surface     *render.Surface
	summary     risk.Summary
	frame       *diff.Frame
	unsubscribe func()
	closed      bool
}

// NewSession returns an empty session. Call Rebuild to load a graph.
func NewSession(id string, opts Options) *Session {
	if opts.Builder == nil {
		opts.Builder = builder.New(builder.DefaultOptions())
	}
	return &Session{
		id:      id,
		opts:    opts,
		created: time.Now(),
		surface: render.NewSurface(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Created() time.Time { return s.created }

// Email returns the identity of the current graph.
func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// Records returns a copy of the breach records of the current graph.
func (s *Session) Records() []model.BreachRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.BreachRecord(nil), s.records...)
}

// Surface returns the retained drawing surface kept in sync with the engine.
func (s *Session) Surface() *render.Surface { return s.surface }

// Rebuild builds a new graph from records and replaces the current one. The
// old engine is disposed only once the new graph is placed, so a failed
// rebuild leaves the session untouched.
func (s *Session) Rebuild(email string, records []model.BreachRecord) error {
	g, err := s.opts.Builder.Build(email, records, s.opts.Targets)
	if err != nil {
		return err
	}
	engine, err := layout.NewEngine(s.opts.Layout)
	if err != nil {
		return err
	}
	if s.opts.Observer != nil {
		engine.SetObserver(s.opts.Observer)
	}
	if err := engine.Load(g); err != nil {
		return err
	}
	if err := engine.Place(); err != nil {
		return err
	}
	snap, err := engine.Snapshot()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		engine.Dispose()
		return fmt.Errorf("%w: session %s is closed", model.ErrEngineState, s.id)
	}
	s.disposeLocked()

	s.email = g.Email
	s.records = append([]model.BreachRecord(nil), records...)
	s.graph = g
	s.engine = engine
	s.controller = interaction.NewController(engine)
	s.summary = risk.Summarize(g)
	if err := s.surface.DrawGraph(snap); err != nil {
		return err
	}
	s.publishLocked(layout.Change{Kind: layout.ChangePlaced}, snap)
	s.unsubscribe = engine.OnChange(s.onChange)

	log.Info("session rebuilt", "session", s.id, "nodes", g.Len(), "links", len(g.Links()),
		"score", s.summary.Total)
	return nil
}

// disposeLocked tears down the current engine. Its disposed notification
// still reaches the surface and subscribers.
func (s *Session) disposeLocked() {
	if s.engine == nil {
		return
	}
	s.engine.Dispose()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.engine = nil
	s.controller = nil
	s.graph = nil
	s.frame = nil
}

// onChange runs inside engine calls, so the session lock is already held.
func (s *Session) onChange(ch layout.Change) {
	s.surface.Apply(ch)
	if ch.Kind == layout.ChangeDisposed {
		s.publishLocked(ch, model.Snapshot{})
		return
	}
	snap, err := s.engine.Snapshot()
	if err != nil {
		log.Warn("snapshot after change failed", "session", s.id, "error", err)
		return
	}
	s.publishLocked(ch, snap)
}

func (s *Session) publishLocked(ch layout.Change, snap model.Snapshot) {
	f := Frame{SessionID: s.id, Change: ch}
	if ch.Kind == layout.ChangeDisposed {
		s.frame = nil
	} else {
		next := diff.NewFrame(snap)
		f.Diff = diff.ComputeFrom(s.frame, snap)
		f.Hash = next.Hash
		s.frame = next
	}
	if s.opts.Publisher == nil {
		return
	}
	if err := s.opts.Publisher.Publish(s.layoutTopic(), string(ch.Kind), f); err != nil {
		log.Debug("layout frame not published", "session", s.id, "error", err)
	}
}

func (s *Session) ready() error {
	if s.engine == nil {
		if s.closed {
			return fmt.Errorf("%w: session %s is closed", model.ErrEngineState, s.id)
		}
		return fmt.Errorf("%w: session %s has no graph", model.ErrEngineState, s.id)
	}
	return nil
}

// Snapshot returns the committed layout.
func (s *Session) Snapshot() (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return model.Snapshot{}, err
	}
	return s.engine.Snapshot()
}

// Summary returns the risk summary of the current graph.
func (s *Session) Summary() (risk.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return risk.Summary{}, err
	}
	return s.summary, nil
}

// State returns the engine state, StateEmpty before the first rebuild.
func (s *Session) State() layout.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		if s.closed {
			return layout.StateDisposed
		}
		return layout.StateEmpty
	}
	return s.engine.State()
}

// Relax runs a relaxation one batch at a time, holding the lock only while a
// batch runs. Drags, pins and rebuilds in between cancel it, as does ctx.
func (s *Session) Relax(ctx context.Context, iterations int) (layout.RelaxResult, error) {
	s.mu.Lock()
	if err := s.ready(); err != nil {
		s.mu.Unlock()
		return layout.RelaxResult{}, err
	}
	run, err := s.engine.BeginRelax(iterations)
	s.mu.Unlock()
	if err != nil {
		return layout.RelaxResult{}, err
	}

	for {
		s.mu.Lock()
		if ctx.Err() != nil {
			run.Cancel()
		}
		done := run.Step()
		s.mu.Unlock()
		if done {
			break
		}
		if s.opts.BatchPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.opts.BatchPause):
			}
		}
	}
	return run.Result(), ctx.Err()
}

// Relaxing reports whether a relaxation is in progress.
func (s *Session) Relaxing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine != nil && s.engine.Relaxing()
}

// CancelRelax stops a running relaxation at its next batch boundary.
func (s *Session) CancelRelax() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil {
		s.engine.CancelRelax()
	}
}

func (s *Session) Pin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	return s.engine.Pin(id)
}

func (s *Session) Unpin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	return s.engine.Unpin(id)
}

func (s *Session) DragTo(id string, x, y float64) (layout.DragResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return layout.DragResult{}, err
	}
	return s.engine.DragTo(id, x, y)
}

// PointerDown forwards a pointer-down to the interaction controller.
func (s *Session) PointerDown(x, y float64) (interaction.Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return interaction.Hit{}, err
	}
	return s.controller.PointerDown(x, y)
}

// PointerMove drags the node grabbed by the last PointerDown.
func (s *Session) PointerMove(x, y float64) (layout.DragResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return layout.DragResult{}, false, err
	}
	return s.controller.PointerMove(x, y)
}

// PointerUp releases the grabbed node, which stays pinned.
func (s *Session) PointerUp() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return "", false, err
	}
	id, ok := s.controller.PointerUp()
	return id, ok, nil
}

// Render draws the committed layout in format f to w.
func (s *Session) Render(f render.Format, w io.Writer, title string) error {
	s.mu.Lock()
	if err := s.ready(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap, err := s.engine.Snapshot()
	summary := s.summary
	s.mu.Unlock()
	if err != nil {
		return err
	}

	r, err := render.New(f, w, render.Options{Title: strings.TrimSpace(title), Summary: &summary})
	if err != nil {
		return err
	}
	return r.DrawGraph(snap)
}

// Close disposes the engine. Further calls fail with ErrEngineState.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.disposeLocked()
	s.closed = true
	log.Debug("session closed", "session", s.id)
}

func (s *Session) layoutTopic() string { return pubsub.LayoutTopic(s.id) }
