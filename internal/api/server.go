// internal/api/server.go
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tranche-workers/internal/allocation"
	"tranche-workers/internal/common/config"
	"tranche-workers/internal/common/logger"
)

// Allocator serves the allocation endpoints.
type Allocator interface {
	Run(ctx context.Context, req allocation.Request) (*allocation.Response, error)
	Criteria() map[string][]string
}

// ThresholdCache is invalidated by POST /v1/thresholds/refresh.
type ThresholdCache interface {
	Invalidate(ctx context.Context, version string) error
}

// Check is one readiness probe, e.g. a database ping.
type Check func(ctx context.Context) error

type Options struct {
	Config     config.HTTPConfig
	Allocator  Allocator
	Thresholds ThresholdCache
	Checks     map[string]Check
	Metrics    http.Handler // defaults to promhttp.Handler()
	Logger     logger.Logger
}

// Server is the HTTP surface next to the job workers.
type Server struct {
	router     *chi.Mux
	server     *http.Server
	allocator  Allocator
	thresholds ThresholdCache
	checks     map[string]Check
	metrics    http.Handler
	log        logger.Logger
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	s := &Server{
		router:     chi.NewRouter(),
		allocator:  opts.Allocator,
		thresholds: opts.Thresholds,
		checks:     opts.Checks,
		metrics:    metrics,
		log:        log.WithFields(map[string]interface{}{"component": "http"}),
	}

	s.setupMiddleware(opts.Config)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         opts.Config.Address,
		Handler:      s.router,
		ReadTimeout:  config.GetDuration(opts.Config.ReadTimeout),
		WriteTimeout: config.GetDuration(opts.Config.WriteTimeout),
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(cfg config.HTTPConfig) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	if len(cfg.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Handle("/metrics", s.metrics)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/criteria", s.handleCriteria)
		r.Post("/allocate", s.handleAllocate)
		r.Post("/thresholds/refresh", s.handleRefreshThresholds)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", map[string]interface{}{"address": s.server.Addr})
	if err := s.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug("http request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
	})
}
