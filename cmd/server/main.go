/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, config file, .env, PAYROLL_* env)
  2. Build the zap logger
  3. Open SQLite and apply migrations
  4. Choose the salary cache (memory, redis or none)
  5. Build calculator and service
  6. Start the cache warmer when enabled
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML config file (default: ./config/config.yaml or
           ./config.yaml when present)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the cache warmer
  2. Stop accepting new connections
  3. Wait for active requests to complete (server.shutdown_timeout)
  4. Close cache and database connections
  5. Exit

EXAMPLES:
  # Defaults: port 8080, ./data/payroll.db, in-process cache
  ./server

  # Shared Redis cache, console logs
  PAYROLL_CACHE_DRIVER=redis PAYROLL_REDIS_ADDR=redis:6379 \
  PAYROLL_LOG_FORMAT=console ./server

  # Demo datasets on an in-memory database
  PAYROLL_DB_PATH=":memory:" PAYROLL_SERVER_ENABLE_SCENARIOS=true ./server

SEE ALSO:
  - config/config.go: every setting and its default
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/cache"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/logging"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Initialize store
	if cfg.DB.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	if v, err := store.Version(context.Background()); err == nil {
		logger.Info("database ready", zap.String("path", cfg.DB.Path), zap.Int64("schema_version", v))
	}

	results, closeCache, err := newCache(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	loc := cfg.Payroll.Location()
	calc := payroll.NewCalculator(payroll.StoresFrom(store), loc, logger.Named("calculator"))
	service := payroll.NewService(calc, results,
		payroll.WithConcurrency(cfg.Payroll.BatchConcurrency),
		payroll.WithLogger(logger.Named("service")))

	warmer := api.NewCacheWarmer(service, loc, logger)
	warmer.Enabled = cfg.Warmer.Enabled
	warmer.Interval = cfg.Warmer.Interval
	warmer.Start()
	defer warmer.Stop()

	handler := api.NewHandler(service, store, loc, logger.Named("api"))
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins:  cfg.Server.CORS.AllowOrigins,
		DefaultTenant:   generic.TenantID(cfg.Payroll.DefaultTenant),
		EnableScenarios: cfg.Server.EnableScenarios,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("timezone", loc.String()),
			zap.String("cache", cfg.Cache.Driver),
			zap.Bool("scenarios", cfg.Server.EnableScenarios))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	warmer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// newCache builds the configured salary cache and its close function.
func newCache(cfg *config.Config, logger *zap.Logger) (payroll.ResultCache, func(), error) {
	switch cfg.Cache.Driver {
	case "redis":
		r, err := cache.NewRedis(cache.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Cache.KeyPrefix,
			TTL:       cfg.Cache.TTL,
		}, logger.Named("cache"))
		if err != nil {
			return nil, nil, err
		}
		return r, func() { r.Close() }, nil
	case "none":
		logger.Warn("salary cache disabled, every read recomputes")
		return nil, func() {}, nil
	default:
		return cache.NewMemory(), func() {}, nil
	}
}
