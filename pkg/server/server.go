// Package server exposes the query pipeline over HTTP: POST /v1/query
// runs one question end to end, GET /healthz reports local and upstream
// health, GET /v1/tools lists the tool catalog the planner works from,
// and GET /metrics serves the Prometheus registry.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/usegrapevine/grapevine/pkg/config"
	"github.com/usegrapevine/grapevine/pkg/graph"
	"github.com/usegrapevine/grapevine/pkg/observability"
	"github.com/usegrapevine/grapevine/pkg/pipeline"
)

// QueryRunner is the slice of the pipeline the query endpoint dispatches to.
type QueryRunner interface {
	Run(ctx context.Context, q pipeline.Query) (*pipeline.Result, error)
}

// GraphProber checks the upstream tool server's liveness.
type GraphProber interface {
	Health(ctx context.Context) (map[string]any, error)
}

// Server is the HTTP API surface. Build with New, run with Start; it
// serves until the context is cancelled, then shuts down gracefully.
type Server struct {
	cfg      config.ServerConfig
	runner   QueryRunner
	prober   GraphProber
	registry *graph.Registry
	metrics  http.Handler
	http     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler installs the handler served at /metrics. Without it
// the endpoint answers 503.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		if h != nil {
			s.metrics = h
		}
	}
}

// WithRegistry substitutes the tool registry backing /v1/tools.
func WithRegistry(registry *graph.Registry) Option {
	return func(s *Server) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// New builds a Server. Gaps in cfg are filled with defaults.
func New(cfg config.ServerConfig, runner QueryRunner, prober GraphProber, opts ...Option) *Server {
	cfg.SetDefaults()

	s := &Server{
		cfg:      cfg,
		runner:   runner,
		prober:   prober,
		registry: graph.NewRegistry(),
		metrics:  observability.DisabledMetricsHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route tree. Health and metrics stay reachable
// without a key; everything under /v1 goes through the API-key check.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestMetrics)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics)

	r.Group(func(r chi.Router) {
		r.Use(apiKeyAuth(s.cfg.APIKeys))
		r.Post("/v1/query", s.handleQuery)
		r.Get("/v1/tools", s.handleTools)
	})

	return r
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	slog.Info("http server starting",
		"address", s.cfg.Address(),
		"auth", len(s.cfg.APIKeys) > 0)

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains in-flight requests up to the configured deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	slog.Info("http server shutting down")
	return s.http.Shutdown(shutdownCtx)
}

// Address returns the configured bind address.
func (s *Server) Address() string {
	return s.cfg.Address()
}
