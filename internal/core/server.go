// Package core provides the API chassis for the coaching platform service.
// It creates the chi router and enforces cross-cutting concerns (recovery,
// timeouts, logging, metrics, actor resolution) before requests reach the
// domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"alathletics/internal/config"
)

// MetricsCollector records API request telemetry. Implemented by the
// CloudWatch collector and by the no-op collector used locally.
type MetricsCollector interface {
	RecordRequest(method, route, status string, duration time.Duration)
}

// RouteRegistrar mounts a handler group onto a chi router. Handler packages
// expose one of these so main.go can register them without core importing
// handler packages.
type RouteRegistrar func(r chi.Router)

// Server bundles the chassis dependencies. Fields are exported so main.go and
// tests can inject alternatives.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// V1RouteRegistrars are mounted under /v1 behind the full middleware
	// chain. RootRouteRegistrars mount outside /v1 (webhooks, health).
	V1RouteRegistrars   []RouteRegistrar
	RootRouteRegistrars []RouteRegistrar

	// HealthProbes are checked by GET /health.
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer initializes the chassis. The caller mounts routes afterwards via
// MountRoutes; the separation lets tests customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown flushes server resources during graceful termination. Database
// pool closing is owned by main.go, which created the pool.
func (s *Server) Shutdown(_ context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
