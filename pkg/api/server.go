package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bazaar/pkg/config"
	"github.com/platinummonkey/bazaar/pkg/middleware"
	"github.com/platinummonkey/bazaar/pkg/observability"
)

// RouteRegistrar is anything that can mount routes on the router. Each
// subsystem's handler set implements it.
type RouteRegistrar interface {
	RegisterRoutes(r *mux.Router)
}

// Server composes the HTTP API from the subsystem handler sets plus the
// middleware chain, and runs the main and health listeners.
type Server struct {
	cfg     config.ServerConfig
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
	health  *observability.HealthChecker

	httpServer   *http.Server
	healthServer *http.Server
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithTracing enables OpenTelemetry HTTP instrumentation.
func WithTracing(serviceName string) ServerOption {
	return func(s *Server) {
		s.router.Use(middleware.Tracing(serviceName))
	}
}

// NewServer builds the API server and mounts every registrar's routes.
func NewServer(cfg config.ServerConfig, logger *observability.Logger, metrics *observability.Metrics, health *observability.HealthChecker, registrars []RouteRegistrar, opts ...ServerOption) *Server {
	s := &Server{
		cfg:     cfg,
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: metrics,
		health:  health,
	}

	s.router.Use(mux.MiddlewareFunc(middleware.RequestID))
	s.router.Use(mux.MiddlewareFunc(middleware.Actor))
	s.router.Use(middleware.Recovery(logger))
	s.router.Use(middleware.Logging(logger))
	if metrics != nil {
		s.router.Use(middleware.Metrics(metrics))
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, reg := range registrars {
		reg.RegisterRoutes(s.router)
	}
	return s
}

// Handler returns the composed router, e.g. for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving on the configured ports. It returns after both
// listeners are started; errors surface on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 2)

	s.httpServer = &http.Server{
		Addr:         s.cfg.Host + ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	if s.health != nil {
		healthMux.HandleFunc("/healthz", s.health.Liveness)
		healthMux.HandleFunc("/readyz", s.health.Readiness)
	}
	if s.metrics != nil {
		healthMux.Handle("/metrics", s.metrics.Handler())
	}
	s.healthServer = &http.Server{
		Addr:    s.cfg.Host + ":" + s.cfg.HealthPort,
		Handler: healthMux,
	}

	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("api server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server failed: %w", err)
		}
	}()
	go func() {
		s.logger.WithField("addr", s.healthServer.Addr).Info("health server listening")
		if err := s.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("health server failed: %w", err)
		}
	}()
	return errCh
}

// Shutdown drains both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if s.healthServer != nil {
		if err := s.healthServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
