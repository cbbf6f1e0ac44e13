package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/indicator-feed/internal/catalog"
	"github.com/JakeFAU/indicator-feed/internal/metrics"
	"github.com/JakeFAU/indicator-feed/internal/orchestrator"
)

// Feed is the orchestrator surface the handlers need.
type Feed interface {
	FetchGroup(ctx context.Context, name string) (orchestrator.Cycle, error)
	ClearGroup(name string) error
	ClearAll()
	Catalog() *catalog.Catalog
}

// Server wires HTTP handlers to the feed.
type Server struct {
	router chi.Router
	feed   Feed
	logger *zap.Logger
}

// DefaultRequestTimeout bounds a request when none is configured.
const DefaultRequestTimeout = 3 * time.Minute

// NewServer constructs a Server with middleware and routes.
func NewServer(feed Feed, requestTimeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	s := &Server{
		feed:   feed,
		logger: logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/groups", s.listGroups)
		r.Route("/groups/{group}", func(r chi.Router) {
			r.Get("/readings", s.groupReadings)
			r.Delete("/cache", s.clearGroup)
		})
		r.Delete("/cache", s.clearAll)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if len(s.feed.Catalog().Names()) == 0 {
		writeError(w, http.StatusServiceUnavailable, "catalog is empty")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type groupSummary struct {
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Indicators []string `json:"indicators"`
}

func (s *Server) listGroups(w http.ResponseWriter, _ *http.Request) {
	groups := s.feed.Catalog().Groups()
	out := make([]groupSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupSummary{Name: g.Name, Title: g.Title, Indicators: g.Titles()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": out})
}

func (s *Server) groupReadings(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "group")
	cycle, err := s.feed.FetchGroup(r.Context(), name)
	if err != nil {
		s.writeFeedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

func (s *Server) clearGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "group")
	if err := s.feed.ClearGroup(name); err != nil {
		s.writeFeedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"group": name, "status": "cleared"})
}

func (s *Server) clearAll(w http.ResponseWriter, _ *http.Request) {
	s.feed.ClearAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) writeFeedError(w http.ResponseWriter, err error) {
	if errors.Is(err, orchestrator.ErrUnknownGroup) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("feed request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

type requestIDKey struct{}

// RequestID returns the request ID stored by the middleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
