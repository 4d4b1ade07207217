// Package server exposes the review snapshot to the website widget over a
// small JSON API, plus health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ImGenos/Dm-Placards/internal/reviews"
)

// Server serves the widget API.
type Server struct {
	svc    *reviews.Service
	online func(ctx context.Context) bool
	log    *slog.Logger
	server *http.Server
}

// New creates the HTTP server. allowedOrigins configures CORS for the
// website origin; empty means same-origin only.
func New(svc *reviews.Service, online func(ctx context.Context) bool, port int, allowedOrigins []string) *Server {
	mux := http.NewServeMux()
	s := &Server{
		svc:    svc,
		online: online,
		log:    slog.Default().With("component", "server"),
	}

	mux.HandleFunc("GET /api/reviews", s.handleReviews)
	mux.HandleFunc("GET /api/reviews/cache", s.handleCacheInfo)
	mux.HandleFunc("GET /api/reviews/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = s.withRequestLog(mux)
	if len(allowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet},
		}).Handler(handler)
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

// handleReviews returns the snapshot for the requested place, or the
// configured default place when no place_id is given. The underlying
// service never fails, so this handler always answers 200 with content.
func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	placeID := r.URL.Query().Get("place_id")
	snap := s.svc.GetPlaceDetails(r.Context(), placeID)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCacheInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": s.svc.CacheInfo(r.Context()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.PerformanceStats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	online := s.online == nil || s.online(r.Context())

	status := "ok"
	code := http.StatusOK
	if !online {
		// Degraded, not down: cached and fallback content still serve.
		status = "degraded"
	}

	writeJSON(w, code, map[string]any{
		"status": status,
		"online": online,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
