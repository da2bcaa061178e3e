package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/metrics"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pipeline"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/queue"
)

// Defaults applied by NewServer.
const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultMaxUploadBytes = 32 << 20
	enqueueTimeout        = 5 * time.Second
)

// Generator renders and stores one page.
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request) (pagegen.Page, string, error)
}

// Dependencies are the collaborators the handlers call.
type Dependencies struct {
	Templates pagegen.TemplateStore
	Pages     pagegen.PageStore
	Jobs      pagegen.JobStore
	Generator Generator
	Queue     queue.Producer
	IDs       pagegen.IDGenerator
	Clock     pagegen.Clock
	// Ready is consulted by /readyz when set.
	Ready func(ctx context.Context) error
	// Limiter throttles page generation per owner when set.
	Limiter RateLimiter
}

// Config controls HTTP behavior.
type Config struct {
	JWTSecret      string
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

// Server wires HTTP handlers to the stores, pipeline and queue.
type Server struct {
	router chi.Router
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Dependencies, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware([]byte(cfg.JWTSecret)))

		r.Route("/templates", func(r chi.Router) {
			r.Post("/", s.createTemplate)
			r.Get("/", s.listTemplates)
			r.Post("/validate", s.validateTemplate)
			r.Route("/{template_id}", func(r chi.Router) {
				r.Get("/", s.getTemplate)
				r.Put("/", s.updateTemplate)
				r.Delete("/", s.deleteTemplate)
				r.Post("/validate", s.validateSavedTemplate)
			})
		})
		r.Route("/pages", func(r chi.Router) {
			r.With(s.throttle("pages")).Post("/", s.createPage)
			r.Get("/", s.listPages)
			r.Get("/{page_id}", s.getPage)
			r.Delete("/{page_id}", s.deletePage)
		})
		r.Route("/bulk", func(r chi.Router) {
			r.With(s.throttle("bulk")).Post("/", s.createBulkJob)
			r.Get("/", s.listBulkJobs)
			r.Get("/{job_id}", s.getBulkJob)
			r.Delete("/{job_id}", s.deleteBulkJob)
		})
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/stats", s.jobStats)
			r.Get("/recent", s.recentJobs)
		})
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

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pagegen.ErrTemplateNotFound),
		errors.Is(err, pagegen.ErrPageNotFound),
		errors.Is(err, pagegen.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, pagegen.ErrTemplateSyntax),
		errors.Is(err, pagegen.ErrMissingVariables):
		return http.StatusBadRequest
	case errors.Is(err, pagegen.ErrPersistenceExhausted),
		errors.Is(err, pagegen.ErrSlugConflict):
		return http.StatusConflict
	case errors.Is(err, pagegen.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, pagegen.ErrStorageUploadFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// notFoundMessage returns the user-facing text for lookup misses.
func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, pagegen.ErrTemplateNotFound):
		return "Template not found"
	case errors.Is(err, pagegen.ErrPageNotFound):
		return "Page not found"
	case errors.Is(err, pagegen.ErrJobNotFound):
		return "Job not found"
	default:
		return "not found"
	}
}

// respondError writes err with its mapped status. Server-side failures are
// logged and reported with fallback instead of the raw error.
func (s *Server) respondError(w http.ResponseWriter, err error, fallback string) {
	status := statusFor(err)
	switch {
	case status == http.StatusNotFound:
		writeError(w, status, notFoundMessage(err))
	case status < http.StatusInternalServerError:
		writeError(w, status, err.Error())
	default:
		s.logger.Error(fallback, zap.Error(err))
		writeError(w, status, fallback)
	}
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
			reqID, _ := r.Context().Value(requestIDKey{}).(string)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", reqID),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
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

type requestIDKey struct{}

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

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
