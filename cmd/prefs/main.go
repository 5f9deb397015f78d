package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"unit-preferences/internal/cli"
	"unit-preferences/internal/config"
	"unit-preferences/internal/observability"
	"unit-preferences/internal/platform/cache"
	"unit-preferences/internal/platform/database"
	"unit-preferences/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := context.Background()

	// Logs go to stderr so stdout stays parseable with --json
	logger := observability.NewLoggerWithWriter(observability.LoadConfig(), os.Stderr)

	var db *sql.DB
	if cfg.StorageBackend == config.StorageBackendPostgres {
		db, err = database.NewConnection(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := database.RunMigrations(ctx, db, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	var redisClient *cache.RedisClient
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Cache)
		if err != nil {
			logger.Warn(ctx).Err(err).Msg("Cache unavailable, continuing without it")
			redisClient = nil
		}
	}

	container, err := services.NewContainer(cfg, db, redisClient, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services container: %w", err)
	}
	defer container.Close()

	return cli.NewRootCommand(container).ExecuteContext(ctx)
}
