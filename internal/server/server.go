// Package server exposes the grid engines over HTTP. Every action is a
// POST to /api/grid/{grid}/{action}; responses are the uniform grid
// result contract serialized as JSON.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sqlpane/sqlpane/internal/grid"
	"github.com/sqlpane/sqlpane/internal/logger"
)

// Server routes grid action requests to registered engines.
type Server struct {
	router  chi.Router
	engines map[string]*grid.Engine
	log     *logger.Logger
}

// New creates a server with no engines registered.
func New(log *logger.Logger) *Server {
	if log == nil {
		log = logger.Global()
	}
	s := &Server{
		engines: make(map[string]*grid.Engine),
		log:     log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/grid/{grid}/{action}", s.handleAction)

	s.router = r
	return s
}

// Register adds an engine under name. Registering the same name twice
// replaces the earlier engine.
func (s *Server) Register(name string, e *grid.Engine) {
	s.engines[name] = e
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "grid")
	engine, found := s.engines[name]
	if !found {
		writeJSON(w, http.StatusNotFound, grid.Result{
			Success: false,
			Message: "unknown grid " + name,
		})
		return
	}

	action, err := grid.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, grid.Result{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	req, err := parseRequest(r, action)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, grid.Result{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	res := engine.Do(r.Context(), req)
	writeJSON(w, http.StatusOK, res)
}

// requestLogger logs one line per request with latency and status.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.InfoWith("request", map[string]any{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  ww.Status(),
			"bytes":   ww.BytesWritten(),
			"elapsed": time.Since(start).String(),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
