package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securely/surfacemap/pkg/breach"
	"github.com/securely/surfacemap/pkg/layout"
	"github.com/securely/surfacemap/pkg/metrics"
	"github.com/securely/surfacemap/pkg/model"
	"github.com/securely/surfacemap/pkg/narrative"
	"github.com/securely/surfacemap/pkg/pubsub"
	"github.com/securely/surfacemap/pkg/view"
)

var fixtures = breach.Fixtures{
	"alice@example.com": {
		{Website: "linkedin.com", BreachDate: "2021-06-22", DataTypes: "email, password"},
		{Website: "github.com", BreachDate: "2020-01-01", DataTypes: "email"},
	},
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(Config{
		Source:  breach.NewStaticSource(fixtures),
		View:    view.DefaultOptions(),
		Metrics: metrics.NewRegistry(),
	})
	t.Cleanup(s.close)
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createSession(t *testing.T, s *Server) SessionResponse {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/sessions", `{"email":"alice@example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[SessionResponse](t, w)
}

func TestCreateSession(t *testing.T) {
	s := newTestServer(t)

	resp := createSession(t, s)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, 30, resp.Risk.Total)
	assert.Equal(t, model.RiskMedium, resp.Risk.ThreatLevel)
	assert.Equal(t, 2, resp.Analysis.Records)

	n, ok := resp.Snapshot.Node("linkedin.com")
	require.True(t, ok)
	assert.InDelta(t, 580, n.Position.X, 1e-9)
	assert.InDelta(t, 300, n.Position.Y, 1e-9)

	w := do(t, s, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[[]SessionInfo](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, resp.ID, list[0].ID)
	assert.Equal(t, "placed", list[0].State)
}

func TestCreateSession_WithRelax(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/sessions", `{"email":"alice@example.com","relax":100}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeBody[SessionResponse](t, w)
	assert.Positive(t, resp.Analysis.Relax.Iterations)
}

func TestCreateSession_Invalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing email", `{}`},
		{"blank email", `{"email":"   "}`},
		{"bad json", `{"email":`},
		{"relax too large", `{"email":"a@b.c","relax":999999}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/sessions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, decodeBody[map[string]string](t, w), "error")
		})
	}
	assert.Zero(t, s.Sessions().Len())
}

func TestSessionReads(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s).ID

	w := do(t, s, http.MethodGet, "/api/sessions/"+id+"/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeBody[model.Snapshot](t, w)
	assert.Equal(t, "alice@example.com", snap.Email)

	w = do(t, s, http.MethodGet, "/api/sessions/"+id+"/risk", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":30`)

	w = do(t, s, http.MethodGet, "/api/sessions/"+id+"/narrative", "")
	require.Equal(t, http.StatusOK, w.Code)
	story := decodeBody[narrative.Summary](t, w)
	assert.True(t, story.Fallback)
	assert.Equal(t, narrative.Fallback(false), story.Text)

	w = do(t, s, http.MethodGet, "/api/sessions/nope/snapshot", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRender(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s).ID

	tests := []struct {
		format      string
		contentType string
		contains    string
	}{
		{"svg", "image/svg+xml", "<svg"},
		{"html", "text/html", "Risk score: 30/100"},
		{"dot", "text/vnd.graphviz", "digraph"},
		{"json", "application/json", `"email": "alice@example.com"`},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w := do(t, s, http.MethodGet, "/api/sessions/"+id+"/render/"+tt.format, "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Contains(t, w.Header().Get("Content-Type"), tt.contentType)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}

	w := do(t, s, http.MethodGet, "/api/sessions/"+id+"/render/png", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDrag(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s).ID
	base := "/api/sessions/" + id

	w := do(t, s, http.MethodPost, base+"/drag/linkedin.com", `{"x":600,"y":200}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeBody[layout.DragResult](t, w)
	assert.True(t, res.Moved)
	assert.Equal(t, model.Position{X: 600, Y: 200}, res.Node.Position)
	assert.True(t, res.Node.Pinned)
	for _, l := range res.Links {
		assert.True(t, l.Source == "linkedin.com" || l.Target == "linkedin.com")
	}

	w = do(t, s, http.MethodPost, base+"/drag/linkedin.com", `{"x":0,"y":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = decodeBody[layout.DragResult](t, w)
	assert.Equal(t, model.Position{X: 50, Y: 130}, res.Node.Position)

	w = do(t, s, http.MethodPost, base+"/drag/center", `{"x":10,"y":10}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeBody[layout.DragResult](t, w).Moved)

	w = do(t, s, http.MethodPost, base+"/drag/nope.com", `{"x":1,"y":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, base+"/drag/linkedin.com", `{"x":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPinUnpin(t *testing.T) {
	s := newTestServer(t)
	base := "/api/sessions/" + createSession(t, s).ID

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, base+"/pin/github.com", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, base+"/pin/github.com", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodDelete, base+"/pin/center", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, base+"/pin/nope.com", "").Code)
}

func TestRelax(t *testing.T) {
	s := newTestServer(t)
	base := "/api/sessions/" + createSession(t, s).ID

	w := do(t, s, http.MethodPost, base+"/relax", `{"iterations":50}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeBody[layout.RelaxResult](t, w)
	assert.Positive(t, res.Iterations)
	assert.LessOrEqual(t, res.Iterations, 50)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, base+"/relax", `{"iterations":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, base+"/relax", "").Code)
}

func TestPointer(t *testing.T) {
	s := newTestServer(t)
	base := "/api/sessions/" + createSession(t, s).ID

	w := do(t, s, http.MethodPost, base+"/pointer/down", `{"x":580,"y":300}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	down := decodeBody[PointerResponse](t, w)
	assert.Equal(t, "linkedin.com", down.Node)
	assert.True(t, down.Dragging)

	w = do(t, s, http.MethodPost, base+"/pointer/move", `{"x":600,"y":250}`)
	require.Equal(t, http.StatusOK, w.Code)
	move := decodeBody[PointerResponse](t, w)
	require.NotNil(t, move.Drag)
	assert.Equal(t, model.Position{X: 600, Y: 250}, move.Drag.Node.Position)

	w = do(t, s, http.MethodPost, base+"/pointer/up", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "linkedin.com", decodeBody[PointerResponse](t, w).Node)

	w = do(t, s, http.MethodPost, base+"/pointer/move", `{"x":1,"y":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeBody[PointerResponse](t, w).Drag)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, base+"/pointer/sideways", `{"x":1,"y":1}`).Code)
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s).ID

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, "/api/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/sessions/"+id+"/snapshot", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/api/sessions/"+id, "").Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", model.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("x: %w", model.ErrUnknownNode), http.StatusNotFound},
		{fmt.Errorf("x: %w", model.ErrEngineState), http.StatusConflict},
		{fmt.Errorf("x: %w", breach.ErrLookupFailed), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

func TestMetricsAndRequestID(t *testing.T) {
	s := newTestServer(t)
	createSession(t, s)

	w := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `surfacemap_http_requests_total{method="POST",path="/api/sessions",status="201"} 1`)
	assert.Contains(t, body, "surfacemap_active_sessions 1")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestStaticIndex(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Attack surface map")
}

func readEvent(t *testing.T, lines *bufio.Scanner) pubsub.Event {
	t.Helper()
	for lines.Scan() {
		line := lines.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var ev pubsub.Event
			require.NoError(t, json.Unmarshal([]byte(data), &ev))
			return ev
		}
	}
	t.Fatalf("stream ended: %v", lines.Err())
	return pubsub.Event{}
}

func TestSubscribeLayout(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s).ID
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sessions/"+id+"/subscribe", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, ": connected", lines.Text())

	require.Eventually(t, func() bool {
		return s.publisher.Subscribers(pubsub.LayoutTopic(id)) == 1
	}, time.Second, 5*time.Millisecond)

	w := do(t, s, http.MethodPost, "/api/sessions/"+id+"/drag/github.com", `{"x":300,"y":200}`)
	require.Equal(t, http.StatusOK, w.Code)

	ev := readEvent(t, lines)
	assert.Equal(t, "dragged", ev.Type)
	var frame view.Frame
	require.NoError(t, json.Unmarshal(ev.Data, &frame))
	require.Len(t, frame.Diff.MovedNodes, 1)
	assert.Equal(t, "github.com", frame.Diff.MovedNodes[0].ID)
}

func TestSubscribeAnalysisStatus_ReplaysLast(t *testing.T) {
	s := newTestServer(t)
	createSession(t, s)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/subscribe/analysis_status", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	ev := readEvent(t, bufio.NewScanner(resp.Body))
	assert.Equal(t, pubsub.StateReady, ev.Type)
}
