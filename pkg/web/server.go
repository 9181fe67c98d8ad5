package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/securely/surfacemap/pkg/analysis"
	"github.com/securely/surfacemap/pkg/breach"
	"github.com/securely/surfacemap/pkg/layout"
	"github.com/securely/surfacemap/pkg/logging"
	"github.com/securely/surfacemap/pkg/metrics"
	"github.com/securely/surfacemap/pkg/model"
	"github.com/securely/surfacemap/pkg/narrative"
	"github.com/securely/surfacemap/pkg/pubsub"
	"github.com/securely/surfacemap/pkg/render"
	"github.com/securely/surfacemap/pkg/risk"
	"github.com/securely/surfacemap/pkg/validation"
	"github.com/securely/surfacemap/pkg/view"
)

//go:embed static/*
var staticFiles embed.FS

var log = logging.New("web")

// Config wires the server to its collaborators.
type Config struct {
	Source   breach.Source
	View     view.Options
	Narrator narrative.Generator
	// Metrics is optional; without it /metrics is not served.
	Metrics *metrics.Registry
	// DefaultRelax is used when a session request does not ask for a pass.
	DefaultRelax int
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	publisher *pubsub.SSEPublisher
	sessions  *view.Registry
	runner    *analysis.AnalysisRunner
	narrator  narrative.Generator
	metrics   *metrics.Registry
	relax     int
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	ID       string                  `json:"id"`
	Snapshot model.Snapshot          `json:"snapshot"`
	Risk     risk.Summary            `json:"risk"`
	Analysis analysis.AnalysisResult `json:"analysis"`
}

// SessionInfo is one entry of the session listing.
type SessionInfo struct {
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	State   string    `json:"state"`
	Created time.Time `json:"created"`
}

// NewServer creates a new web server
func NewServer(cfg Config) *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// analysis_status: buffer last 10 events, replay only last event to new subscribers
	ssePublisher.ConfigureTopic(pubsub.TopicAnalysisStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false, // Only send current state
	})

	viewOpts := cfg.View
	viewOpts.Publisher = ssePublisher
	var gauge view.SessionGauge
	if cfg.Metrics != nil {
		viewOpts.Observer = cfg.Metrics
		gauge = cfg.Metrics
	}

	narrator := cfg.Narrator
	if narrator == nil {
		narrator = narrative.NewClient("", "")
	}

	runner := analysis.NewAnalysisRunner(cfg.Source, ssePublisher)
	if cfg.Metrics != nil {
		runner.SetRecorder(cfg.Metrics)
	}

	s := &Server{
		router:    mux.NewRouter(),
		publisher: ssePublisher,
		sessions:  view.NewRegistry(viewOpts, gauge),
		runner:    runner,
		narrator:  narrator,
		metrics:   cfg.Metrics,
		relax:     cfg.DefaultRelax,
	}
	s.setupRoutes()
	return s
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler { return s.router }

// Sessions returns the session registry.
func (s *Server) Sessions() *view.Registry { return s.sessions }

// Runner returns the analysis runner shared by all sessions.
func (s *Server) Runner() *analysis.AnalysisRunner { return s.runner }

// Publisher returns the event publisher behind the SSE endpoints.
func (s *Server) Publisher() pubsub.Publisher { return s.publisher }

// Reanalyze reruns the analysis of every open session, e.g. after the
// breach fixtures changed.
func (s *Server) Reanalyze(ctx context.Context, reason string) {
	for _, sess := range s.sessions.List() {
		email := sess.Email()
		if email == "" {
			continue
		}
		opts := analysis.AnalysisOptions{Email: email, Relax: s.relax, Reason: reason}
		if _, err := s.runner.Run(ctx, sess, opts); err != nil {
			log.Warn("reanalysis failed", "session", sess.ID(), "error", err)
		}
	}
}

func (s *Server) setupRoutes() {
	var observe logging.RequestObserver
	if s.metrics != nil {
		observe = s.metrics.RecordHTTPRequest
	}
	s.router.Use(logging.RequestIDMiddleware(observe))

	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/analysis_status", s.handleSubscribeAnalysisStatus).Methods("GET")
	s.router.HandleFunc("/api/sessions/{id}/subscribe", s.handleSubscribeLayout).Methods("GET")

	// Session lifecycle
	s.router.HandleFunc("/api/sessions", s.handleCreateSession).Methods("POST")
	s.router.HandleFunc("/api/sessions", s.handleListSessions).Methods("GET")
	s.router.HandleFunc("/api/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Read models
	s.router.HandleFunc("/api/sessions/{id}/snapshot", s.handleSnapshot).Methods("GET")
	s.router.HandleFunc("/api/sessions/{id}/risk", s.handleRisk).Methods("GET")
	s.router.HandleFunc("/api/sessions/{id}/narrative", s.handleNarrative).Methods("GET")
	s.router.HandleFunc("/api/sessions/{id}/render/{format}", s.handleRender).Methods("GET")

	// Layout operations
	s.router.HandleFunc("/api/sessions/{id}/relax", s.handleRelax).Methods("POST")
	s.router.HandleFunc("/api/sessions/{id}/pin/{node}", s.handlePin).Methods("POST")
	s.router.HandleFunc("/api/sessions/{id}/pin/{node}", s.handleUnpin).Methods("DELETE")
	s.router.HandleFunc("/api/sessions/{id}/drag/{node}", s.handleDrag).Methods("POST")
	s.router.HandleFunc("/api/sessions/{id}/pointer/{action:down|move|up}", s.handlePointer).Methods("POST")

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	// Serve static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		logging.Fatal("embedded static files missing", "error", err)
	}
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS)))
}

// statusOf maps the domain error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnknownNode):
		return http.StatusNotFound
	case errors.Is(err, model.ErrEngineState):
		return http.StatusConflict
	case errors.Is(err, breach.ErrLookupFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "request error", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", model.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) session(r *http.Request) (*view.Session, error) {
	return s.sessions.Get(mux.Vars(r)["id"])
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req validation.LookupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.ValidateLookupRequest(&req); err != nil {
		writeError(w, r, err)
		return
	}
	relax := req.Relax
	if relax == 0 {
		relax = s.relax
	}

	sess := s.sessions.Create()
	res, err := s.runner.Run(r.Context(), sess, analysis.AnalysisOptions{
		Email:  req.Email,
		Relax:  relax,
		Reason: "session created",
	})
	if err != nil {
		_ = s.sessions.Close(sess.ID())
		writeError(w, r, err)
		return
	}
	snap, err := sess.Snapshot()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{
		ID:       sess.ID(),
		Snapshot: snap,
		Risk:     res.Risk,
		Analysis: res,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	out := make([]SessionInfo, 0, s.sessions.Len())
	for _, sess := range s.sessions.List() {
		out = append(out, SessionInfo{
			ID:      sess.ID(),
			Email:   sess.Email(),
			State:   sess.State().String(),
			Created: sess.Created(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := sess.Snapshot()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := sess.Summary()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleNarrative(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	email := sess.Email()
	if email == "" {
		writeError(w, r, fmt.Errorf("%w: session has not been analysed", model.ErrEngineState))
		return
	}
	summary, err := s.narrator.Summarize(r.Context(), email, sess.Records())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	format, err := render.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Render into memory first so failures can still be reported as JSON.
	var buf bytes.Buffer
	if err := sess.Render(format, &buf, r.URL.Query().Get("title")); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Debug("render write failed", "error", err)
	}
}

func (s *Server) handleRelax(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req validation.RelaxRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := sess.Relax(r.Context(), req.Iterations)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := sess.Pin(mux.Vars(r)["node"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnpin(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := sess.Unpin(mux.Vars(r)["node"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func point(r *http.Request) (float64, float64, error) {
	var req validation.PointRequest
	if err := decode(r, &req); err != nil {
		return 0, 0, err
	}
	if err := validation.Struct(&req); err != nil {
		return 0, 0, err
	}
	return *req.X, *req.Y, nil
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	x, y, err := point(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := sess.DragTo(mux.Vars(r)["node"], x, y)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PointerResponse reports the effect of a pointer event.
type PointerResponse struct {
	Node     string             `json:"node,omitempty"`
	Dragging bool               `json:"dragging"`
	Drag     *layout.DragResult `json:"drag,omitempty"`
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var resp PointerResponse
	switch mux.Vars(r)["action"] {
	case "down":
		x, y, err := point(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		hit, err := sess.PointerDown(x, y)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp = PointerResponse{Node: hit.ID, Dragging: hit.Dragging}
	case "move":
		x, y, err := point(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		res, ok, err := sess.PointerMove(x, y)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if ok {
			resp = PointerResponse{Node: res.Node.ID, Dragging: true, Drag: &res}
		}
	case "up":
		id, _, err := sess.PointerUp()
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp = PointerResponse{Node: id}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubscribeAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, pubsub.TopicAnalysisStatus)
}

func (s *Server) handleSubscribeLayout(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.stream(w, r, pubsub.LayoutTopic(sess.ID()))
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, topic string) {
	// Create subscription
	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer sub.Close()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*") // CORS support

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	// Stream events until the client leaves or the topic goes away
	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.DebugContext(r.Context(), "SSE client went away", "topic", topic, "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// Start serves on port until ctx is cancelled, then shuts down gracefully
// and disposes all sessions.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// SSE streams end when the publisher closes, so close it before waiting.
	s.close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) close() {
	s.sessions.CloseAll()
	if err := s.publisher.Close(); err != nil {
		log.Warn("failed to close publisher", "error", err)
	}
}
