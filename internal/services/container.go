package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"unit-preferences/internal/config"
	"unit-preferences/internal/domain/preferences"
	"unit-preferences/internal/observability"
	"unit-preferences/internal/platform/cache"
	"unit-preferences/internal/services/implementations"
	"unit-preferences/internal/state"
)

// ErrMissingDatabase is returned when the postgres backend is selected without a connection
var ErrMissingDatabase = errors.New("postgres storage backend requires a database connection")

// Container holds all the application dependencies
type Container struct {
	config *config.Config
	logger *observability.Logger
	db     *sql.DB            // nil with the memory backend
	cache  *cache.RedisClient // nil when caching is disabled

	// Repositories
	preferencesRepository preferences.Repository

	// Services
	preferencesService *implementations.PreferencesServiceImpl

	// Client-side state
	preferencesStore *state.PreferencesStore
}

// NewContainer creates a new dependency injection container.
// db and redisClient may be nil; logger may be nil.
func NewContainer(cfg *config.Config, db *sql.DB, redisClient *cache.RedisClient, logger *observability.Logger) (*Container, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	container := &Container{
		config: cfg,
		logger: logger,
		db:     db,
		cache:  redisClient,
	}

	if err := container.initializeServices(); err != nil {
		return nil, err
	}

	return container, nil
}

// initializeServices initializes all services in the correct dependency order
func (c *Container) initializeServices() error {
	switch c.config.StorageBackend {
	case config.StorageBackendMemory:
		c.preferencesRepository = implementations.NewMemoryPreferencesRepository()
	case config.StorageBackendPostgres, "":
		if c.db == nil {
			return ErrMissingDatabase
		}
		c.preferencesRepository = implementations.NewPreferencesRepository(c.db, c.logger)
	default:
		return fmt.Errorf("unknown storage backend %q", c.config.StorageBackend)
	}

	// Keep the interface nil when there is no client
	var preferencesCache implementations.PreferencesCache
	if c.cache != nil {
		preferencesCache = c.cache
	}

	c.preferencesService = implementations.NewPreferencesService(c.preferencesRepository, preferencesCache, c.logger)
	c.preferencesStore = state.NewPreferencesStore(c.preferencesService, c.logger.WithFields(map[string]interface{}{
		"component": "preferences_store",
	}))

	c.logger.Info(context.Background()).
		Str("storage_backend", c.storageBackend()).
		Bool("cache_enabled", c.cache != nil).
		Msg("Dependency injection container initialized successfully")

	return nil
}

func (c *Container) storageBackend() string {
	if c.config.StorageBackend == "" {
		return config.StorageBackendPostgres
	}
	return c.config.StorageBackend
}

// Getters for accessing services

func (c *Container) Config() *config.Config {
	return c.config
}

func (c *Container) Logger() *observability.Logger {
	return c.logger
}

func (c *Container) DB() *sql.DB {
	return c.db
}

func (c *Container) Cache() *cache.RedisClient {
	return c.cache
}

func (c *Container) PreferencesRepository() preferences.Repository {
	return c.preferencesRepository
}

func (c *Container) PreferencesService() preferences.Service {
	return c.preferencesService
}

func (c *Container) PreferencesStore() *state.PreferencesStore {
	return c.preferencesStore
}

// Close releases the cache client. The database handle belongs to the caller.
func (c *Container) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}
