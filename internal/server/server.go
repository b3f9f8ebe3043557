// Package server exposes the session manager over HTTP. Every route
// mirrors one manager operation; bodies are JSON both ways.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/stagewright/internal/manager"
	"github.com/ppiankov/stagewright/internal/scenario"
	"github.com/ppiankov/stagewright/internal/session"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr string
}

// Server serves the session API.
type Server struct {
	mgr  *manager.Manager
	http *http.Server
}

// New wires the session routes around an existing manager.
func New(cfg Config, mgr *manager.Manager) *Server {
	s := &Server{mgr: mgr}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route tree. For testing.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Serve listens on the configured address and blocks until the
// listener fails or Shutdown runs.
func (s *Server) Serve() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeOn serves on an existing listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	if err := s.http.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
// Live sessions are untouched; the caller decides whether to end them.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Close stops the server without draining.
func (s *Server) Close() error {
	return s.http.Close()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Get("/{id}", s.handleSessionInfo)
		r.Post("/{id}/step", s.handleStep)
		r.Delete("/{id}", s.handleEndSession)
	})
	return r
}

type createRequest struct {
	Scenario  string `json:"scenario,omitempty"`
	Path      string `json:"path,omitempty"`
	StartPart int    `json:"start_part,omitempty"`
}

type stepRequest struct {
	Retry bool `json:"retry,omitempty"`
	Skip  bool `json:"skip,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.mgr.List()),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Scenario == "" && req.Path == "" {
		respondError(w, http.StatusBadRequest, errors.New("scenario or path required"))
		return
	}
	created, err := s.mgr.Create(r.Context(), manager.CreateOptions{
		Source:    []byte(req.Scenario),
		Path:      req.Path,
		StartPart: req.StartPart,
	})
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"sessions": s.mgr.List()})
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.mgr.Info(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	exec, err := s.mgr.Advance(r.Context(), chi.URLParam(r, "id"), manager.AdvanceOpts{
		Retry: req.Retry,
		Skip:  req.Skip,
	})
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, exec)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	ended, err := s.mgr.End(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, ended)
}

// decodeBody reads a JSON request body. An empty body leaves the
// target zero-valued, so POST routes work without one.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// statusFor maps manager errors onto HTTP status codes. Anything
// unrecognized counts as a server fault.
func statusFor(err error) int {
	var (
		notFound *manager.SessionNotFoundError
		finished *session.SessionFinishedError
		invalid  *scenario.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &finished):
		return http.StatusConflict
	case errors.As(err, &invalid),
		errors.Is(err, manager.ErrRetrySkipConflict),
		errors.Is(err, manager.ErrStartPartOutOfRange),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		fmt.Fprintf(os.Stderr, "server: encode response: %v\n", err)
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorResponse{Error: err.Error()})
}
