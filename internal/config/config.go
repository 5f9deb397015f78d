// Package config provides application configuration management
// with validation and environment parsing
package config

import (
	"os"
	"strconv"
	"time"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"
)

// Config represents the application configuration
type Config struct {
	Environment    string
	Port           string
	Host           string
	DatabaseURL    string
	StorageBackend string
	Cache          CacheConfig
	Logging        *LoggingConfig
	Server         *ServerConfig
}

// CacheConfig holds Redis/Valkey configuration for the preferences read-through cache
type CacheConfig struct {
	Enabled         bool
	Address         string
	Password        string
	Database        int
	DefaultTTL      time.Duration
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Load creates a new configuration from environment variables with validation
func Load() (*Config, error) {
	readTimeout, _ := time.ParseDuration(getEnv("READ_TIMEOUT", "10s"))
	writeTimeout, _ := time.ParseDuration(getEnv("WRITE_TIMEOUT", "10s"))
	idleTimeout, _ := time.ParseDuration(getEnv("SERVER_TIMEOUT", "30s"))

	config := &Config{
		Environment:    getEnv("GO_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		Host:           getEnv("HOST", "localhost"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		StorageBackend: getEnv("STORAGE_BACKEND", StorageBackendPostgres),
		Cache:          loadCacheConfig(),
		Logging: &LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Server: &ServerConfig{
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
	}

	// Validate configuration before returning
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadCacheConfig() CacheConfig {
	enabled, _ := strconv.ParseBool(getEnv("CACHE_ENABLED", "false"))

	return CacheConfig{
		Enabled:         enabled,
		Address:         getEnv("CACHE_ADDRESS", "localhost:6379"),
		Password:        getEnv("CACHE_PASSWORD", ""),
		Database:        getEnvInt("CACHE_DB", 0),
		DefaultTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),
		MaxRetries:      getEnvInt("CACHE_MAX_RETRIES", 3),
		MinRetryBackoff: getEnvDuration("CACHE_MIN_RETRY_BACKOFF", 8*time.Millisecond),
		MaxRetryBackoff: getEnvDuration("CACHE_MAX_RETRY_BACKOFF", 512*time.Millisecond),
		DialTimeout:     getEnvDuration("CACHE_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:     getEnvDuration("CACHE_READ_TIMEOUT", 3*time.Second),
		WriteTimeout:    getEnvDuration("CACHE_WRITE_TIMEOUT", 3*time.Second),
		PoolSize:        getEnvInt("CACHE_POOL_SIZE", 10),
		MinIdleConns:    getEnvInt("CACHE_MIN_IDLE_CONNS", 2),
		PoolTimeout:     getEnvDuration("CACHE_POOL_TIMEOUT", 4*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

// MustLoad loads configuration and panics on error
// Useful for startup scenarios where invalid config should crash the application
func MustLoad() *Config {
	config, err := Load()
	if err != nil {
		panic(err)
	}
	return config
}
