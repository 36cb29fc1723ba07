// Package api exposes the HTTP interface for the crawl service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mfeit/textcrawler/internal/crawl"
	"github.com/mfeit/textcrawler/internal/metrics"
)

// JobPool is the worker-pool surface the frontend depends on.
type JobPool interface {
	Submit(ctx context.Context, job crawl.Job) crawl.Outcome
	Refresh() error
	Live() bool
}

// Server wires HTTP handlers to the worker pool manager.
type Server struct {
	router chi.Router
	pool   JobPool
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(pool JobPool, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{pool: pool, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// No request timeout on /crawl: the handler suspends for the full
	// duration of the job inside Submit.
	r.Post("/crawl", s.crawlHandler)
	r.Post("/refresh_resources", s.refreshHandler)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type crawlRequest struct {
	StartURLs      []string `json:"start_urls"`
	AllowedDomains []string `json:"allowed_domains"`
}

type refreshResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) crawlHandler(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOutcome(w, http.StatusBadRequest, crawl.Outcome{
			Status:  crawl.StatusError,
			Results: []crawl.PageResult{},
			Message: "invalid JSON payload",
		}, s.logger)
		return
	}
	if len(req.StartURLs) == 0 {
		writeOutcome(w, http.StatusBadRequest, crawl.Outcome{
			Status:  crawl.StatusError,
			Results: []crawl.PageResult{},
			Message: "start_urls must be provided",
		}, s.logger)
		return
	}

	outcome := s.pool.Submit(r.Context(), crawl.Job{
		StartURLs:      req.StartURLs,
		AllowedDomains: req.AllowedDomains,
	})
	if outcome.Results == nil {
		outcome.Results = []crawl.PageResult{}
	}
	writeOutcome(w, http.StatusOK, outcome, s.logger)
}

func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Refresh(); err != nil {
		s.logger.Error("pool refresh failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, refreshResponse{
			Status:  string(crawl.StatusError),
			Message: err.Error(),
		}, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Status:  "refreshed_and_restarted",
		Message: "worker pool has been terminated and a new pool is ready for immediate use",
	}, s.logger)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.pool.Live() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"}, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.status, time.Since(start))
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"status":  string(crawl.StatusError),
					"message": "internal server error",
				}, s.logger)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeOutcome(w http.ResponseWriter, status int, outcome crawl.Outcome, logger *zap.Logger) {
	writeJSON(w, status, outcome, logger)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}
