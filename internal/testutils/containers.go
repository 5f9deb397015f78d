package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	redisModule "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"unit-preferences/internal/config"
	"unit-preferences/internal/platform/cache"
	"unit-preferences/internal/platform/database"
)

// TestContainers manages test containers for integration testing
type TestContainers struct {
	PostgresContainer testcontainers.Container
	RedisContainer    testcontainers.Container
	DB                *sql.DB
	RedisClient       *cache.RedisClient
	DatabaseURL       string
	RedisEndpoint     string
}

// SetupTestContainers starts Postgres and Valkey and applies migrations
func SetupTestContainers(ctx context.Context) (*TestContainers, error) {
	containers := &TestContainers{}

	// Setup PostgreSQL container
	if err := containers.setupPostgres(ctx); err != nil {
		_ = containers.Cleanup(ctx) //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("failed to setup postgres container: %w", err)
	}

	// Setup Valkey container
	if err := containers.setupRedis(ctx); err != nil {
		_ = containers.Cleanup(ctx) //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("failed to setup redis container: %w", err)
	}

	// Run database migrations
	if err := database.RunMigrations(ctx, containers.DB, nil); err != nil {
		_ = containers.Cleanup(ctx) //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return containers, nil
}

// setupPostgres creates and starts a PostgreSQL test container
func (tc *TestContainers) setupPostgres(ctx context.Context) error {
	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.WithSQLDriver("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to start postgres container: %w", err)
	}

	tc.PostgresContainer = postgresContainer

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	tc.DatabaseURL = connStr

	// NewConnection pings once; retry while the server finishes starting
	var lastErr error
	for i := 0; i < 10; i++ {
		db, err := database.NewConnection(connStr)
		if err == nil {
			tc.DB = db
			return nil
		}
		lastErr = err
		time.Sleep(time.Second)
	}

	return fmt.Errorf("failed to connect to postgres after retries: %w", lastErr)
}

// setupRedis creates and starts a Valkey test container (Redis-compatible)
func (tc *TestContainers) setupRedis(ctx context.Context) error {
	redisContainer, err := redisModule.Run(ctx,
		"valkey/valkey:7-alpine",
		redisModule.WithLogLevel(redisModule.LogLevelVerbose),
	)
	if err != nil {
		return fmt.Errorf("failed to start valkey container: %w", err)
	}

	tc.RedisContainer = redisContainer

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to get valkey endpoint: %w", err)
	}

	tc.RedisEndpoint = endpoint

	redisClient, err := cache.NewRedisClient(config.CacheConfig{
		Enabled:     true,
		Address:     endpoint,
		DefaultTTL:  time.Hour,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}

	tc.RedisClient = redisClient
	return nil
}

// Cleanup terminates all test containers and closes connections
func (tc *TestContainers) Cleanup(ctx context.Context) error {
	var errs []error

	if tc.DB != nil {
		if err := tc.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if tc.PostgresContainer != nil {
		if err := tc.PostgresContainer.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to terminate postgres container: %w", err))
		}
	}

	if tc.RedisClient != nil {
		if err := tc.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close valkey client: %w", err))
		}
	}

	if tc.RedisContainer != nil {
		if err := tc.RedisContainer.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to terminate valkey container: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}

	return nil
}

// ResetDatabase clears all preference rows, keeping the schema
func (tc *TestContainers) ResetDatabase(ctx context.Context) error {
	if _, err := tc.DB.ExecContext(ctx, "TRUNCATE TABLE user_preferences"); err != nil {
		return fmt.Errorf("failed to truncate user_preferences: %w", err)
	}
	return nil
}

// FlushRedis drops every cached preference set from Valkey
func (tc *TestContainers) FlushRedis(ctx context.Context) error {
	if tc.RedisClient == nil {
		return fmt.Errorf("valkey client not available")
	}

	_, err := tc.RedisClient.PurgePreferences(ctx)
	return err
}
