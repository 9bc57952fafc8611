// Package http exposes a workflow engine over a JSON HTTP API. Sessions are
// created, advanced one user turn at a time, and observed over SSE; state is
// persisted through the session manager between turns, so the server itself
// stays stateless.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/avhart/espalier/internal/logging"
	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/graph"
	"github.com/avhart/espalier/pkg/session"
)

// Server advances workflow sessions over HTTP.
type Server struct {
	workflow *graph.Workflow
	sessions *session.Manager
	streams  *StreamManager
	logger   *slog.Logger
	maxSteps int
	metrics  http.Handler
	version  string
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxSteps bounds how many nodes a single turn may execute.
func WithMaxSteps(n int) Option {
	return func(s *Server) { s.maxSteps = n }
}

// WithMetricsHandler mounts a metrics endpoint (typically promhttp.Handler)
// at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithVersion sets the version string reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a server over the given workflow and session manager.
func NewServer(wf *graph.Workflow, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		workflow: wf,
		sessions: sessions,
		streams:  NewStreamManager(),
		logger:   logging.NewNop(),
		maxSteps: graph.DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/info", s.handleInfo)
	r.Get("/graph", s.handleGraph)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleDelete)
			r.Post("/input", s.handleInput)
			r.Get("/events", s.handleEvents)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionResponse is the wire form of a session turn.
type SessionResponse struct {
	SessionID string        `json:"session_id"`
	State     *domain.State `json:"state"`
}

// InputRequest carries the user's answer to a suspended session.
type InputRequest struct {
	Input string `json:"input"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()
	if _, err := s.sessions.LoadOrStart(r.Context(), sessionID); err != nil {
		s.writeError(w, "create session", err)
		return
	}
	state, err := s.sessions.Update(r.Context(), sessionID, func(ctx context.Context, st *domain.State) (*domain.State, error) {
		return s.workflow.Advance(ctx, st, s.maxSteps)
	})
	if err != nil {
		s.writeError(w, "create session", err)
		return
	}
	s.streams.Broadcast(sessionID, state)
	s.writeJSON(w, http.StatusCreated, SessionResponse{SessionID: sessionID, State: state})
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body InputRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		s.logger.Warn("input: invalid request body", "err", err)
		return
	}

	state, err := s.sessions.Update(r.Context(), sessionID, func(ctx context.Context, st *domain.State) (*domain.State, error) {
		if st.Status != domain.StatusAwaitingInput {
			return nil, errSessionNotAwaiting
		}
		st.Input = body.Input
		st.Status = domain.StatusActive
		return s.workflow.Advance(ctx, st, s.maxSteps)
	})
	if err != nil {
		s.writeError(w, "post input", err)
		return
	}
	s.streams.Broadcast(sessionID, state)
	s.writeJSON(w, http.StatusOK, SessionResponse{SessionID: sessionID, State: state})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	state, err := s.sessions.Load(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, "get session", err)
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{SessionID: sessionID, State: state})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.sessions.Delete(r.Context(), sessionID); err != nil {
		s.writeError(w, "delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeError(w, "list sessions", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.workflow.Mermaid(nil))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "espalier-http",
		"version": s.version,
	})
}

var errSessionNotAwaiting = errors.New("session is not awaiting input")

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errSessionNotAwaiting):
		status = http.StatusConflict
	case domain.IsExternalError(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Warn(op+" rejected", "err", err, "status", status)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
