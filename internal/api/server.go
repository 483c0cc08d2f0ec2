// Package api provides the local HTTP server for pulse.
// It exposes the engagement engine over JSON under /api/v1.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulsefit/pulse/internal/app/engagement"
	"github.com/pulsefit/pulse/internal/health"
	"github.com/pulsefit/pulse/internal/logger"
)

// Version is reported by /api/version.
const Version = "0.1.0"

// Server is the pulse HTTP API server.
type Server struct {
	tracker        *engagement.Tracker
	health         *health.Checker
	log            *logger.Logger
	mcpHandler     http.Handler
	metricsEnabled bool
}

// NewServer creates a new API server over tracker.
func NewServer(tracker *engagement.Tracker, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{tracker: tracker, log: log.With("component", "api")}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetMCPHandler mounts the MCP Streamable HTTP transport at /mcp.
func (s *Server) SetMCPHandler(h http.Handler) { s.mcpHandler = h }

// SetHealth attaches a health checker to /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": Version})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/streaks", s.handleListStreaks)
		r.Get("/streaks/{category}", s.handleGetStreak)
		r.Post("/streaks/{category}", s.handleUpdateStreak)

		r.Post("/completions", s.handleRecordCompletion)

		r.Get("/progress", s.handleListMetrics)
		r.Put("/progress/{metric}", s.handleUpdateProgress)
		r.Post("/progress/{metric}/increment", s.handleIncrementMetric)

		r.Get("/achievements", s.handleAchievementsByCategory)
		r.Get("/achievements/unlocked", s.handleUnlocked)
		r.Post("/achievements/check", s.handleCheckAchievements)
		r.Post("/achievements/{id}/unlock", s.handleUnlock)
		r.Get("/achievements/{id}/progress", s.handleAchievementProgress)

		r.Get("/level", s.handleLevel)
		r.Get("/levels", s.handleLevels)

		r.Get("/habits", s.handleListHabits)
		r.Post("/habits/{category}", s.handleTrackHabit)
		r.Get("/habits/{category}/insights", s.handleInsights)
		r.Post("/habits/{category}/nudge", s.handleNudge)
		r.Get("/nudges", s.handleNudgeHistory)

		r.Post("/reset", s.handleReset)
	})

	if s.mcpHandler != nil {
		r.Handle("/mcp", s.mcpHandler)
	}

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.health.Statuses(),
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

// decodeOptional decodes a JSON body into v. An empty body leaves v
// untouched and reports false.
func decodeOptional(r *http.Request, v interface{}) (bool, error) {
	if r.Body == nil {
		return false, nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	return err == nil, err
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
