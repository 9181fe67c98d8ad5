// Package analysis runs the lookup, build, place and relax pipeline for a
// session and reports its progress as analysis_status events.
package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/securely/surfacemap/pkg/breach"
	"github.com/securely/surfacemap/pkg/layout"
	"github.com/securely/surfacemap/pkg/logging"
	"github.com/securely/surfacemap/pkg/pubsub"
	"github.com/securely/surfacemap/pkg/risk"
	"github.com/securely/surfacemap/pkg/view"
)

var log = logging.New("analysis")

const totalSteps = 5

// Recorder receives build outcomes, typically the metrics registry.
type Recorder interface {
	RecordGraphBuild(nodes, links int, err error)
	SetRiskScore(total int)
}

// AnalysisRunner orchestrates the analysis process
type AnalysisRunner struct {
	source    breach.Source
	publisher pubsub.Publisher
	recorder  Recorder
	mu        sync.Mutex // Prevent concurrent analysis runs
}

// AnalysisOptions configures one run
type AnalysisOptions struct {
	Email  string
	Relax  int    // relaxation iterations, 0 skips the pass
	Reason string // e.g., "initial analysis", "fixtures changed"
}

// AnalysisResult summarizes a finished run
type AnalysisResult struct {
	SessionID string             `json:"sessionId"`
	Email     string             `json:"email"`
	Records   int                `json:"records"`
	Risk      risk.Summary       `json:"risk"`
	Relax     layout.RelaxResult `json:"relax"`
}

// NewAnalysisRunner creates a new analysis runner. publisher may be nil.
func NewAnalysisRunner(source breach.Source, publisher pubsub.Publisher) *AnalysisRunner {
	return &AnalysisRunner{
		source:    source,
		publisher: publisher,
	}
}

// SetRecorder attaches a build recorder.
func (ar *AnalysisRunner) SetRecorder(r Recorder) {
	ar.recorder = r
}

// Run looks up the breaches of opts.Email and rebuilds s from them. A
// relaxation cancelled by user input is not an error.
func (ar *AnalysisRunner) Run(ctx context.Context, s *view.Session, opts AnalysisOptions) (AnalysisResult, error) {
	// Lock to prevent concurrent analysis
	ar.mu.Lock()
	defer ar.mu.Unlock()

	result := AnalysisResult{SessionID: s.ID(), Email: opts.Email}
	status := func(state, msg string, step int) {
		ar.publish(pubsub.AnalysisStatus{
			State: state, Message: msg, Step: step, Total: totalSteps,
			SessionID: s.ID(), Email: opts.Email,
		})
	}
	fail := func(step int, err error) (AnalysisResult, error) {
		log.Error("analysis failed", "session", s.ID(), "step", step, "error", err)
		status(pubsub.StateError, err.Error(), step)
		return result, err
	}

	log.Info("starting analysis", "session", s.ID(), "reason", opts.Reason)

	// Phase 1: breach lookup
	status(pubsub.StateLookingUp, fmt.Sprintf("Looking up breaches via %s...", ar.source.Name()), 1)
	records, err := ar.source.Lookup(ctx, opts.Email)
	if err != nil {
		return fail(1, fmt.Errorf("breach lookup failed: %w", err))
	}
	result.Records = len(records)
	log.Debug("breaches found", "session", s.ID(), "count", len(records))

	// Phase 2: graph build and placement
	status(pubsub.StateBuilding, fmt.Sprintf("Building graph from %d breach records...", len(records)), 2)
	if err := s.Rebuild(opts.Email, records); err != nil {
		ar.recordBuild(0, 0, err)
		return fail(2, fmt.Errorf("graph build failed: %w", err))
	}
	snap, err := s.Snapshot()
	if err != nil {
		return fail(2, err)
	}
	ar.recordBuild(len(snap.Nodes), len(snap.Links), nil)

	summary, err := s.Summary()
	if err != nil {
		return fail(3, err)
	}
	result.Email = snap.Email
	result.Risk = summary
	if ar.recorder != nil {
		ar.recorder.SetRiskScore(summary.Total)
	}
	status(pubsub.StatePlacing, fmt.Sprintf("Placed %d nodes, risk score %d", len(snap.Nodes), summary.Total), 3)

	// Phase 3: relaxation
	if opts.Relax > 0 {
		status(pubsub.StateRelaxing, "Relaxing layout...", 4)
		res, err := s.Relax(ctx, opts.Relax)
		result.Relax = res
		if err != nil {
			return fail(4, fmt.Errorf("relax interrupted: %w", err))
		}
		log.Debug("relax done", "session", s.ID(), "iterations", res.Iterations,
			"converged", res.Converged, "cancelled", res.Cancelled)
	}

	status(pubsub.StateReady, "Analysis complete", totalSteps)
	log.Info("analysis complete", "session", s.ID(), "nodes", len(snap.Nodes), "score", summary.Total)
	return result, nil
}

func (ar *AnalysisRunner) recordBuild(nodes, links int, err error) {
	if ar.recorder != nil {
		ar.recorder.RecordGraphBuild(nodes, links, err)
	}
}

func (ar *AnalysisRunner) publish(st pubsub.AnalysisStatus) {
	if ar.publisher == nil {
		return
	}
	if err := ar.publisher.Publish(pubsub.TopicAnalysisStatus, st.State, st); err != nil {
		log.Warn("failed to publish analysis status", "error", err)
	}
}
