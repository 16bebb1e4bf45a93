// Package main is the entry point for the coaching platform API server.
//
// It loads configuration, connects the Postgres pool, builds the plan
// registry (validated against the Stripe catalog), wires the billing and
// scheduling services into the HTTP chassis, and serves until SIGINT/SIGTERM
// triggers a graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"alathletics/internal/api/handlers"
	"alathletics/internal/billing"
	"alathletics/internal/config"
	"alathletics/internal/core"
	"alathletics/internal/db"
	"alathletics/internal/external"
	"alathletics/internal/metrics"
	"alathletics/internal/scheduling"
)

// catalogCheckTimeout bounds the startup Stripe catalog validation.
const catalogCheckTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("alathletics API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	// Database pool.
	pool, err := db.NewPool(ctx, cfg.Database.URL.Unmask(), int32(cfg.Database.MaxConns), int32(cfg.Database.MinConns))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Repositories.
	subRepo := db.NewSubscriptionRepository(pool)
	profileRepo := db.NewProfileRepository(pool)
	appointmentRepo := db.NewAppointmentRepository(pool)
	planChangeStore := db.NewPlanChangeStore(pool)

	// Stripe client.
	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: 20 * time.Second},
		external.StripeClientConfig{
			SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
			Logger:    logger,
		},
	)

	// Plan registry, validated against the provider catalog before serving.
	registry, err := billing.NewRegistry(cfg.Billing)
	if err != nil {
		return fmt.Errorf("building plan registry: %w", err)
	}
	if cfg.Billing.SkipCatalogCheck {
		logger.Warn("skipping Stripe catalog validation")
	} else {
		checkCtx, cancel := context.WithTimeout(ctx, catalogCheckTimeout)
		err := registry.ValidateCatalog(checkCtx, stripeClient)
		cancel()
		if err != nil {
			return fmt.Errorf("validating plan catalog: %w", err)
		}
		logger.Info("plan catalog validated", "prices", len(registry.PriceIDs()))
	}

	// Billing services.
	reconciler := billing.NewReconciler(subRepo, stripeClient, logger)
	orchestrator := billing.NewOrchestrator(subRepo, profileRepo, registry, stripeClient, planChangeStore, logger)

	// Scheduling services.
	slotCalculator, err := scheduling.NewSlotCalculator(cfg.Scheduling, appointmentRepo)
	if err != nil {
		return fmt.Errorf("building slot calculator: %w", err)
	}
	bookingService := scheduling.NewBookingService(appointmentRepo, slotCalculator, logger)

	// Chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics, err = newMetricsCollector(ctx, cfg.Metrics, logger)
	if err != nil {
		return fmt.Errorf("creating metrics collector: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{dbProbe{pool: pool}}

	// Handlers.
	billingHandler := handlers.NewBillingHandler(reconciler, orchestrator, subRepo, srv.Validator, logger)
	schedulingHandler := handlers.NewSchedulingHandler(slotCalculator, bookingService, srv.Validator, logger)
	adminHandler := handlers.NewAdminHandler(subRepo, appointmentRepo, bookingService, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(
		&external.StripeVerifier{},
		cfg.Billing.StripeWebhookSecret.Unmask(),
		subRepo,
		reconciler,
		stripeClient,
		registry,
		planChangeStore,
		logger,
	)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		billingHandler.RegisterRoutes,
		schedulingHandler.RegisterRoutes,
		adminHandler.RegisterRoutes,
	)
	srv.RootRouteRegistrars = append(srv.RootRouteRegistrars, webhookHandler.RegisterRoutes)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newMetricsCollector returns the CloudWatch collector when metrics are
// enabled, the no-op collector otherwise.
func newMetricsCollector(ctx context.Context, cfg config.MetricsConfig, logger *slog.Logger) (core.MetricsCollector, error) {
	if !cfg.Enabled {
		return metrics.NoopCollector{}, nil
	}
	return metrics.NewCloudWatchCollector(ctx, cfg, logger)
}

// dbProbe checks database connectivity for GET /health.
type dbProbe struct {
	pool *pgxpool.Pool
}

func (p dbProbe) Name() string { return "database" }

func (p dbProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// runHTTPServer starts the server with graceful shutdown on SIGINT/SIGTERM.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a JSON slog.Logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
