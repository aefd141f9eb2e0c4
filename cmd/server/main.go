/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the collaborator commission server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, config file, env, flags)
  2. Build zap logger
  3. Open SQLite store (migrations applied)
  4. Create metrics registry and commission service
  5. Optionally load a demo scenario (--seed)
  6. Start payout scheduler and HTTP server

COMMAND-LINE FLAGS:
  --port       HTTP server port (default: 8080)
  --db         SQLite database path (default: commission.db)
               Use ":memory:" for in-memory database
  --log-level  debug, info, warn, error (default: info)
  --seed       Demo scenario to load at start-up
  --config     Config file path

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (http.shutdown_timeout, 30s)
  3. Stop the payout scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server --db="./data/commission.db"

  # Run in memory with demo data
  ./server --db=":memory:" --seed=ana-march

  # JSON logs, different port
  COMMISSION_LOG_FORMAT=json ./server --port=3000

SEE ALSO:
  - config/config.go: All settings and env variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/warp/commission-engine/api"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/config"
	"github.com/warp/commission-engine/logging"
	"github.com/warp/commission-engine/metrics"
	"github.com/warp/commission-engine/store/sqlite"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// Configuration
	fs := config.NewFlagSet("server")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}

	// Logger
	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	// Store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer store.Close()

	// Service
	opts := []commission.Option{commission.WithLogger(logger)}
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		opts = append(opts, commission.WithObserver(m))
	}
	svc := commission.NewService(store, opts...)

	handler := api.NewHandler(svc, store, logger)
	if cfg.Seed.Scenario != "" {
		if err := handler.Seed(context.Background(), cfg.Seed.Scenario); err != nil {
			return fmt.Errorf("seed scenario: %w", err)
		}
	}

	// Payout scheduler
	scheduler := api.NewPayoutScheduler(svc, logger)
	scheduler.CheckInterval = cfg.Payouts.CheckInterval
	scheduler.Enabled = cfg.Payouts.SchedulerEnabled
	if m != nil {
		scheduler.Reporter = m
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Router
	router := api.NewRouter(handler, api.RouterOptions{
		Logger:      logger,
		Metrics:     m,
		MetricsPath: cfg.Metrics.Path,
		CORSOrigins: cfg.HTTP.CORSAllowOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("env", cfg.App.Env),
			zap.String("db", cfg.Database.Path),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", zap.Stringer("signal", sig))
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
