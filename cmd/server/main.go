/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the gym front-desk server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, CONFIG_PATH yaml, or environment)
  2. Build the logger
  3. Initialize SQLite store
  4. Connect the Redis catalog cache when configured
  5. Create API handler, token maker and expiry scheduler
  6. Configure HTTP router
  7. Start server with graceful shutdown

ENVIRONMENT:
  DB_PATH                SQLite database path (":memory:" for in-memory)
  HTTP_ADDRESS           Listen address (default :8080)
  TIMEZONE               Gym timezone for "today" (default America/Mexico_City)
  JWT_SECRET, JWT_TTL    Staff token signing
  REDIS_ADDRESS          Enables the catalog cache when set
  EXPIRY_CHECK_INTERVAL  Membership expiry sweep period
  Run with an invalid configuration to print the full reference.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the expiry scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database and cache connections

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/gym-desk/api"
	"github.com/warp/gym-desk/auth"
	"github.com/warp/gym-desk/cache"
	"github.com/warp/gym-desk/config"
	"github.com/warp/gym-desk/logging"
	"github.com/warp/gym-desk/store/sqlite"
)

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg.LogLevel, cfg.Env)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timezone")
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to initialize database")
	}
	defer store.Close()

	// Optional catalog cache
	var catalog *cache.Catalog
	if cfg.RedisEnabled() {
		client, err := cache.Connect(context.Background(), cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Str("address", cfg.Redis.Address).Msg("redis unavailable, catalog cache disabled")
		} else {
			defer client.Close()
			catalog = cache.NewCatalog(client, cfg.Redis.CatalogTTL)
		}
	}

	// Initialize handler
	handler := api.NewHandler(store, api.Options{
		Catalog:  catalog,
		Metrics:  api.NewMetrics(),
		Location: loc,
		Logger:   log,
	})

	scheduler := api.NewExpiryScheduler(store, handler)
	scheduler.CheckInterval = cfg.ExpiryCheckInterval
	scheduler.Start()

	// Create router
	router := api.NewRouter(handler, api.RouterConfig{
		Maker:          auth.NewMaker(cfg.JWT.Secret, cfg.JWT.TokenTTL),
		AllowedOrigins: cfg.CORSOrigins,
		Scheduler:      scheduler,
	})

	server := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("address", cfg.HTTPServer.Address).
			Str("env", cfg.Env).
			Str("timezone", loc.String()).
			Bool("catalog_cache", catalog != nil).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
