// Package api exposes the HTTP interface for the capture service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/capture"
	"github.com/sitelens/sitelens/internal/metrics"
	"github.com/sitelens/sitelens/internal/runner"
)

// Config tunes the HTTP surface.
type Config struct {
	// RequestTimeout bounds handler execution.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// AuthEnabled gates requests behind the API key middleware.
	AuthEnabled bool `mapstructure:"auth_enabled" yaml:"auth_enabled"`
	// APIKey is checked against X-API-Key when auth is enabled.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// CaptureService is the job-control surface the handlers need.
type CaptureService interface {
	Submit(ctx context.Context, cfg capture.Config) (runner.Submission, error)
	Cancel(captureID int64) bool
}

// Server wires HTTP handlers to the store and the capture runner.
type Server struct {
	router  chi.Router
	store   capture.Store
	service CaptureService
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The Prometheus
// gatherer backs /metrics; pass nil to use the default registry.
func NewServer(
	cfg Config,
	store capture.Store,
	service CaptureService,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		store:   store,
		service: service,
		logger:  logger,
	}

	metrics.Init()
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.RequestTimeout))
	if cfg.AuthEnabled {
		r.Use(apiKeyMiddleware(cfg.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/captures", func(r chi.Router) {
			r.Post("/", s.submitCapture)
			r.Get("/", s.listCaptures)
			r.Route("/{capture_id}", func(r chi.Router) {
				r.Get("/", s.getCapture)
				r.Get("/status", s.getCaptureStatus)
				r.Post("/cancel", s.cancelCapture)
			})
		})
		r.Route("/tags", func(r chi.Router) {
			r.Post("/", s.createTag)
			r.Get("/", s.listTags)
			r.Get("/{tag_id}", s.getTag)
			r.Delete("/{tag_id}", s.deleteTag)
		})
		r.Route("/websites", func(r chi.Router) {
			r.Get("/", s.listWebsites)
			r.Route("/{website_id}", func(r chi.Router) {
				r.Get("/", s.getWebsite)
				r.Get("/pages", s.listWebsitePages)
				r.Post("/tags", s.addWebsiteTag)
			})
		})
		r.Route("/pages/{page_id}", func(r chi.Router) {
			r.Get("/", s.getPage)
			r.Get("/screenshots", s.listPageScreenshots)
			r.Post("/tags", s.addPageTag)
		})
		r.Get("/screenshots/{screenshot_id}", s.getScreenshot)
		r.Route("/device-profiles", func(r chi.Router) {
			r.Post("/", s.createDeviceProfile)
			r.Get("/", s.listDeviceProfiles)
			r.Get("/default", s.listDefaultDeviceProfiles)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// The entity store is in-memory and always ready.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func parseID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, capture.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
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
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal server error"}`))
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

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

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

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}
