package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securely/surfacemap/pkg/breach"
	"github.com/securely/surfacemap/pkg/layout"
	"github.com/securely/surfacemap/pkg/model"
	"github.com/securely/surfacemap/pkg/pubsub"
	"github.com/securely/surfacemap/pkg/view"
)

var fixtures = breach.Fixtures{
	"alice@example.com": {
		{Website: "linkedin.com", BreachDate: "2021-06-22", DataTypes: "email, password"},
		{Website: "github.com", BreachDate: "2020-01-01", DataTypes: "email"},
	},
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }
func (failingSource) Lookup(context.Context, string) ([]model.BreachRecord, error) {
	return nil, errors.New("service unavailable")
}

type recorder struct {
	builds, failures int
	score            int
}

func (r *recorder) RecordGraphBuild(nodes, links int, err error) {
	if err != nil {
		r.failures++
		return
	}
	r.builds++
}

func (r *recorder) SetRiskScore(total int) { r.score = total }

func collect(t *testing.T, sub pubsub.Subscription, n int) []pubsub.AnalysisStatus {
	t.Helper()
	var out []pubsub.AnalysisStatus
	for len(out) < n {
		select {
		case ev := <-sub.Events():
			var st pubsub.AnalysisStatus
			require.NoError(t, json.Unmarshal(ev.Data, &st))
			assert.Equal(t, st.State, ev.Type)
			out = append(out, st)
		case <-time.After(time.Second):
			t.Fatalf("got %d status events, want %d", len(out), n)
		}
	}
	return out
}

func states(sts []pubsub.AnalysisStatus) []string {
	out := make([]string, len(sts))
	for i, st := range sts {
		out[i] = st.State
	}
	return out
}

func TestRun(t *testing.T) {
	pub := pubsub.NewSSEPublisher()
	defer pub.Close()
	sub, err := pub.Subscribe(context.Background(), pubsub.TopicAnalysisStatus)
	require.NoError(t, err)

	rec := &recorder{}
	runner := NewAnalysisRunner(breach.NewStaticSource(fixtures), pub)
	runner.SetRecorder(rec)
	s := view.NewSession("s1", view.DefaultOptions())
	defer s.Close()

	res, err := runner.Run(context.Background(), s, AnalysisOptions{
		Email: "Alice@Example.com", Relax: 200, Reason: "test",
	})
	require.NoError(t, err)

	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 30, res.Risk.Total)
	assert.Positive(t, res.Relax.Iterations)
	assert.Equal(t, layout.StateInteractive, s.State())
	assert.Equal(t, 1, rec.builds)
	assert.Equal(t, 30, rec.score)

	sts := collect(t, sub, 5)
	assert.Equal(t, []string{
		pubsub.StateLookingUp, pubsub.StateBuilding, pubsub.StatePlacing,
		pubsub.StateRelaxing, pubsub.StateReady,
	}, states(sts))
	for i, st := range sts {
		assert.Equal(t, i+1, st.Step)
		assert.Equal(t, totalSteps, st.Total)
		assert.Equal(t, "s1", st.SessionID)
	}
}

func TestRun_WithoutRelax(t *testing.T) {
	runner := NewAnalysisRunner(breach.NewStaticSource(fixtures), nil)
	s := view.NewSession("s1", view.DefaultOptions())
	defer s.Close()

	res, err := runner.Run(context.Background(), s, AnalysisOptions{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.Zero(t, res.Records)
	assert.Zero(t, res.Risk.Total)
	assert.Equal(t, layout.StatePlaced, s.State())
}

func TestRun_LookupFailure(t *testing.T) {
	pub := pubsub.NewSSEPublisher()
	defer pub.Close()
	sub, err := pub.Subscribe(context.Background(), pubsub.TopicAnalysisStatus)
	require.NoError(t, err)

	runner := NewAnalysisRunner(failingSource{}, pub)
	s := view.NewSession("s1", view.DefaultOptions())
	defer s.Close()

	_, err = runner.Run(context.Background(), s, AnalysisOptions{Email: "alice@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service unavailable")
	assert.Equal(t, layout.StateEmpty, s.State())

	sts := collect(t, sub, 2)
	assert.Equal(t, []string{pubsub.StateLookingUp, pubsub.StateError}, states(sts))
	assert.Equal(t, 1, sts[1].Step)
}

func TestRun_InvalidEmail(t *testing.T) {
	rec := &recorder{}
	runner := NewAnalysisRunner(breach.NewStaticSource(fixtures), nil)
	runner.SetRecorder(rec)
	s := view.NewSession("s1", view.DefaultOptions())
	defer s.Close()

	_, err := runner.Run(context.Background(), s, AnalysisOptions{Email: "  "})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Zero(t, rec.builds)
}

func TestRun_ContextCancelled(t *testing.T) {
	runner := NewAnalysisRunner(breach.NewStaticSource(fixtures), nil)
	s := view.NewSession("s1", view.DefaultOptions())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner.Run(ctx, s, AnalysisOptions{Email: "alice@example.com", Relax: 100})
	assert.ErrorIs(t, err, context.Canceled)
}
