package view

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/securely/surfacemap/pkg/model"
)

// SessionGauge is told the number of open sessions whenever it changes.
type SessionGauge interface {
	SetActiveSessions(n int)
}

type topicDropper interface {
	DropTopic(topic string)
}

// Registry owns the open sessions, keyed by random ids.
type Registry struct {
	opts  Options
	gauge SessionGauge

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a registry whose sessions share opts. gauge may be nil.
func NewRegistry(opts Options, gauge SessionGauge) *Registry {
	return &Registry{
		opts:     opts,
		gauge:    gauge,
		sessions: make(map[string]*Session),
	}
}

// Create opens a new, empty session.
func (r *Registry) Create() *Session {
	s := NewSession(uuid.NewString(), r.opts)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.report(n)
	log.Debug("session created", "session", s.ID())
	return s
}

// Get returns the session with id or an ErrUnknownNode error.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %q", model.ErrUnknownNode, id)
	}
	return s, nil
}

// Close disposes and forgets the session with id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: session %q", model.ErrUnknownNode, id)
	}

	s.Close()
	if d, ok := r.opts.Publisher.(topicDropper); ok {
		d.DropTopic(s.layoutTopic())
	}
	r.report(n)
	return nil
}

// CloseAll disposes every session.
func (r *Registry) CloseAll() {
	for _, s := range r.List() {
		_ = r.Close(s.ID())
	}
}

// List returns the open sessions, oldest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].created.Equal(out[j].created) {
			return out[i].id < out[j].id
		}
		return out[i].created.Before(out[j].created)
	})
	return out
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) report(n int) {
	if r.gauge != nil {
		r.gauge.SetActiveSessions(n)
	}
}
