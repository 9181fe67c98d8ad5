package layout

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/securely/surfacemap/pkg/logging"
	"github.com/securely/surfacemap/pkg/model"
)

const (
	// minDistance keeps force and collision maths away from division by zero.
	minDistance = 0.01

	// collisionSweeps bounds the final overlap resolution pass.
	collisionSweeps = 200

	overlapTolerance = 1e-6
)

// RelaxResult summarises one relaxation.
type RelaxResult struct {
	Iterations   int           `json:"iterations"`
	Converged    bool          `json:"converged"`
	Cancelled    bool          `json:"cancelled"`
	Displacement float64       `json:"displacement"`
	Duration     time.Duration `json:"duration"`
}

// RelaxRun is a relaxation in progress. The caller drives it with Step, one
// batch of iterations at a time, which lets other work (drags, cancellation)
// interleave between batches.
type RelaxRun struct {
	engine    *Engine
	remaining int
	cancelled atomic.Bool
	done      bool
	started   time.Time
	result    RelaxResult
}

// BeginRelax starts a relaxation of at most iterations steps, capped at the
// configured maximum. A run already in progress is cancelled first.
func (e *Engine) BeginRelax(iterations int) (*RelaxRun, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("%w: iterations must be positive, got %d", model.ErrInvalidInput, iterations)
	}
	if err := e.interact("relax"); err != nil {
		return nil, err
	}
	e.CancelRelax()
	iterations = min(iterations, e.cfg.MaxIterations)
	e.run = &RelaxRun{engine: e, remaining: iterations, started: time.Now()}
	log.Debug("relax started", "iterations", iterations)
	return e.run, nil
}

// Relax runs a relaxation to completion, checking ctx between batches.
func (e *Engine) Relax(ctx context.Context, iterations int) (RelaxResult, error) {
	run, err := e.BeginRelax(iterations)
	if err != nil {
		return RelaxResult{}, err
	}
	for {
		if ctx.Err() != nil {
			run.Cancel()
		}
		if run.Step() {
			break
		}
	}
	return run.Result(), ctx.Err()
}

// CancelRelax stops the active relaxation at its next batch boundary. It may
// be called from any goroutine.
func (e *Engine) CancelRelax() {
	if run := e.run; run != nil {
		run.Cancel()
	}
}

// Relaxing reports whether a relaxation is in progress.
func (e *Engine) Relaxing() bool {
	return e.run != nil && !e.run.done
}

// Cancel stops the run at its next batch boundary.
func (r *RelaxRun) Cancel() { r.cancelled.Store(true) }

// Done reports whether the run has finished.
func (r *RelaxRun) Done() bool { return r.done }

// Result returns the outcome so far.
func (r *RelaxRun) Result() RelaxResult { return r.result }

// Step runs one batch and commits the resulting positions. It returns true
// once the run has finished, converged or cancelled.
func (r *RelaxRun) Step() bool {
	if r.done {
		return true
	}
	e := r.engine
	if r.cancelled.Load() || e.run != r || e.state != StateInteractive {
		r.finish(true)
		return true
	}

	batch := min(e.cfg.BatchSize, r.remaining)
	for range batch {
		disp := e.iterate()
		r.remaining--
		r.result.Iterations++
		r.result.Displacement = disp
		if disp < e.cfg.Epsilon && !e.overlapping() {
			r.result.Converged = true
			break
		}
	}
	if r.result.Converged || r.remaining == 0 {
		e.resolveCollisions()
		r.result.Converged = r.result.Converged && !e.overlapping()
		e.commitFree()
		r.finish(false)
		return true
	}
	e.commitFree()
	log.Log(context.Background(), logging.LevelTrace, "relax batch",
		"iterations", r.result.Iterations, "displacement", r.result.Displacement)
	return false
}

func (r *RelaxRun) finish(cancelled bool) {
	r.done = true
	r.result.Cancelled = cancelled
	r.result.Duration = time.Since(r.started)
	e := r.engine
	if e.run == r {
		e.run = nil
	}
	log.Debug("relax finished",
		"iterations", r.result.Iterations,
		"converged", r.result.Converged,
		"cancelled", cancelled)
	if e.observer != nil {
		e.observer.RelaxFinished(r.result)
	}
}

// commitFree writes back every unpinned node and announces the move.
func (e *Engine) commitFree() {
	ch := Change{Kind: ChangeRelaxed}
	moved := make(map[string]bool)
	for _, b := range e.bodies {
		if b.pinned {
			continue
		}
		ch.Nodes = append(ch.Nodes, e.commit(b))
		moved[b.node.ID] = true
	}
	var touched []int
	for i, l := range e.links {
		if moved[l.Source] || moved[l.Target] {
			touched = append(touched, i)
		}
	}
	ch.Links = e.endpoints(touched)
	e.emit(ch)
}

// iterate advances the simulation by one step and returns the total
// displacement of free nodes.
func (e *Engine) iterate() float64 {
	forces := make([]r2.Vec, len(e.bodies))

	for _, l := range e.links {
		i, j := e.index[l.Source], e.index[l.Target]
		if i == j {
			continue
		}
		a, b := e.bodies[i], e.bodies[j]
		dir, dist := separation(a.pos, b.pos, i, j)
		f := r2.Scale(e.cfg.SpringStrength*(dist-e.cfg.RestLength(l.Kind)), dir)
		forces[i] = r2.Add(forces[i], f)
		forces[j] = r2.Sub(forces[j], f)
	}

	for i := range e.bodies {
		for j := i + 1; j < len(e.bodies); j++ {
			dir, dist := separation(e.bodies[i].pos, e.bodies[j].pos, i, j)
			f := r2.Scale(e.cfg.Repulsion/(dist*dist), dir)
			forces[i] = r2.Sub(forces[i], f)
			forces[j] = r2.Add(forces[j], f)
		}
	}

	bounds := e.cfg.Bounds()
	var total float64
	for i, b := range e.bodies {
		if b.pinned {
			b.vel = r2.Vec{}
			continue
		}
		f := r2.Add(forces[i], r2.Scale(e.cfg.CenteringStrength, r2.Sub(e.center, b.pos)))
		b.vel = r2.Scale(e.cfg.Damping, r2.Add(b.vel, f))
		if speed := r2.Norm(b.vel); speed > e.cfg.MaxStep {
			b.vel = r2.Scale(e.cfg.MaxStep/speed, b.vel)
		}
		next := toVec(bounds.Clamp(toPosition(r2.Add(b.pos, b.vel))))
		total += r2.Norm(r2.Sub(next, b.pos))
		b.pos = next
	}

	return total + e.collide()
}

// collide pushes overlapping pairs apart. Pinned nodes never move; a free
// node overlapping a pinned one takes the whole correction.
func (e *Engine) collide() float64 {
	bounds := e.cfg.Bounds()
	var total float64
	for i := range e.bodies {
		for j := i + 1; j < len(e.bodies); j++ {
			a, b := e.bodies[i], e.bodies[j]
			if a.pinned && b.pinned {
				continue
			}
			want := a.radius + b.radius + e.cfg.CollisionPadding
			dir, dist := separation(a.pos, b.pos, i, j)
			if dist >= want {
				continue
			}
			overlap := want - dist + overlapTolerance
			shareA, shareB := 0.5, 0.5
			switch {
			case a.pinned:
				shareA, shareB = 0, 1
			case b.pinned:
				shareA, shareB = 1, 0
			}
			if shareA > 0 {
				next := toVec(bounds.Clamp(toPosition(r2.Sub(a.pos, r2.Scale(overlap*shareA, dir)))))
				total += r2.Norm(r2.Sub(next, a.pos))
				a.pos = next
			}
			if shareB > 0 {
				next := toVec(bounds.Clamp(toPosition(r2.Add(b.pos, r2.Scale(overlap*shareB, dir)))))
				total += r2.Norm(r2.Sub(next, b.pos))
				b.pos = next
			}
		}
	}
	return total
}

// resolveCollisions repeats the collision pass until no pair of nodes with a
// free member overlaps, or the sweep budget runs out.
func (e *Engine) resolveCollisions() {
	for range collisionSweeps {
		if !e.overlapping() {
			return
		}
		e.collide()
	}
}

func (e *Engine) overlapping() bool {
	for i := range e.bodies {
		for j := i + 1; j < len(e.bodies); j++ {
			a, b := e.bodies[i], e.bodies[j]
			if a.pinned && b.pinned {
				continue
			}
			if r2.Norm(r2.Sub(b.pos, a.pos)) < a.radius+b.radius+e.cfg.CollisionPadding-overlapTolerance {
				return true
			}
		}
	}
	return false
}

// separation returns the unit vector from p to q and their distance. Nodes
// closer than minDistance are split along a direction derived from their
// indices so that coincident nodes always separate the same way.
func separation(p, q r2.Vec, i, j int) (r2.Vec, float64) {
	d := r2.Sub(q, p)
	dist := r2.Norm(d)
	if dist < minDistance {
		theta := float64(i*7+j*13) * 0.618033988749895 * 2 * math.Pi
		return r2.Vec{X: math.Cos(theta), Y: math.Sin(theta)}, minDistance
	}
	return r2.Scale(1/dist, d), dist
}
