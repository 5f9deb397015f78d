package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"unit-preferences/internal/config"
	"unit-preferences/internal/observability"
	"unit-preferences/internal/platform/cache"
	"unit-preferences/internal/platform/database"
	"unit-preferences/internal/platform/server"
	"unit-preferences/internal/services"
	"unit-preferences/internal/web/handlers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	obsConfig := observability.LoadConfig()
	logger := observability.NewLogger(obsConfig)

	otel.SetErrorHandler(otel.ErrorHandlerFunc(logger.OTELErrorHandler()))

	provider, err := observability.NewProvider(ctx, obsConfig)
	if err != nil {
		logger.Fatal(ctx).Err(err).Msg("Failed to initialize OpenTelemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx).Err(err).Msg("Failed to shutdown OpenTelemetry")
		}
	}()

	var db *sql.DB
	if cfg.StorageBackend == config.StorageBackendPostgres {
		db, err = database.NewConnection(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal(ctx).Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := database.RunMigrations(ctx, db, logger); err != nil {
			logger.Fatal(ctx).Err(err).Msg("Failed to run migrations")
		}
	}

	var redisClient *cache.RedisClient
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Cache)
		if err != nil {
			// The cache is optional; preferences are served from storage without it
			logger.Warn(ctx).Err(err).Str("address", cfg.Cache.Address).Msg("Cache unavailable, continuing without it")
			redisClient = nil
		}
	}

	// Initialize dependency injection container
	container, err := services.NewContainer(cfg, db, redisClient, logger)
	if err != nil {
		logger.Fatal(ctx).Err(err).Msg("Failed to initialize services container")
	}
	defer container.Close()

	handler := handlers.NewWithContainer(container)

	srv := server.New(cfg.Port, cfg.Server, handler.Routes())

	go func() {
		logger.Info(ctx).
			Str("port", cfg.Port).
			Str("storage_backend", cfg.StorageBackend).
			Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx).Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx).Msg("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx).Err(err).Msg("Server forced to shutdown")
		return
	}

	logger.Info(ctx).Msg("Server exited")
}
