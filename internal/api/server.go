// Package api provides the HTTP server for scribed: task submission,
// status polling, live progress streaming, and artifact retrieval.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scribe-audio/scribed/internal/health"
	"github.com/scribe-audio/scribed/internal/orchestrator"
)

// Server is the scribed HTTP API server.
type Server struct {
	orch           *orchestrator.Orchestrator
	checker        *health.Checker
	version        string
	metricsEnabled bool
	auth           *AuthConfig // nil disables request signing
}

// NewServer creates a new API server.
func NewServer(orch *orchestrator.Orchestrator, checker *health.Checker, version string) *Server {
	return &Server{orch: orch, checker: checker, version: version}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetAuth enables HMAC request signing on the task API.
func (s *Server) SetAuth(cfg *AuthConfig) { s.auth = cfg }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": s.version,
		})
	})

	// Task API
	r.Route("/api/tasks", func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.Middleware)
		}
		// Submission and streaming have no further timeout; the SSE
		// stream stays open for the task's whole lifetime.
		r.Post("/", s.handleCreateTask)
		r.Get("/", s.handleListTasks)
		r.Get("/{id}", s.handleGetTask)
		r.Get("/{id}/stream", s.handleStreamTask)
		r.Get("/{id}/artifact", s.handleGetArtifact)
		r.Post("/{id}/cancel", s.handleCancelTask)
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.checker.Statuses()
	status := http.StatusOK
	if !s.checker.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": s.checker.IsHealthy(),
		"checks":  statuses,
		"time":    time.Now().UTC(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Auth-UserId, X-Auth-Timestamp, X-Auth-Nonce, X-Auth-Sign")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
