package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}

	return fmt.Sprintf("configuration validation failed: %s", strings.Join(messages, "; "))
}

// Has checks if ValidationErrors contains any errors
func (ve ValidationErrors) Has() bool {
	return len(ve) > 0
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var validationErrors ValidationErrors

	// Validate basic server configuration
	if err := c.validateServer(); err != nil {
		validationErrors = append(validationErrors, err...)
	}

	// Validate database configuration
	if err := c.validateDatabase(); err != nil {
		validationErrors = append(validationErrors, err...)
	}

	// Validate storage backend and cache
	if err := c.validateStorageBackend(); err != nil {
		validationErrors = append(validationErrors, err...)
	}

	if err := c.validateCache(); err != nil {
		validationErrors = append(validationErrors, err...)
	}

	// Validate logging configuration (if present)
	if c.Logging != nil {
		if err := c.validateLogging(); err != nil {
			validationErrors = append(validationErrors, err...)
		}
	}

	// Validate server timeouts (if present)
	if c.Server != nil {
		if err := c.validateServerTimeouts(); err != nil {
			validationErrors = append(validationErrors, err...)
		}
	}

	if validationErrors.Has() {
		return validationErrors
	}

	return nil
}

func (c *Config) validateServer() ValidationErrors {
	var errors ValidationErrors

	// Validate port
	if c.Port == "" {
		errors = append(errors, ValidationError{
			Field:   "port",
			Value:   c.Port,
			Message: "port cannot be empty",
		})
	} else {
		if port, err := strconv.Atoi(c.Port); err != nil {
			errors = append(errors, ValidationError{
				Field:   "port",
				Value:   c.Port,
				Message: "port must be a valid integer",
			})
		} else if port < 1 || port > 65535 {
			errors = append(errors, ValidationError{
				Field:   "port",
				Value:   c.Port,
				Message: "port must be between 1 and 65535",
			})
		}
	}

	// Validate environment
	if c.Environment != "" {
		validEnvs := []string{"development", "production", "test", "staging"}
		isValid := false
		for _, validEnv := range validEnvs {
			if c.Environment == validEnv {
				isValid = true
				break
			}
		}

		if !isValid {
			errors = append(errors, ValidationError{
				Field:   "environment",
				Value:   c.Environment,
				Message: "environment must be one of: development, production, test, staging",
			})
		}
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	// Database URL is required whenever Postgres backs the preferences
	if c.Environment != "test" && c.StorageBackend != StorageBackendMemory && c.DatabaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "database_url",
			Value:   c.DatabaseURL,
			Message: "database URL is required for the postgres storage backend",
		})
		return errors
	}

	// Skip validation if empty (test environment or memory backend)
	if c.DatabaseURL == "" {
		return errors
	}

	// Validate database URL format
	parsedURL, err := url.Parse(c.DatabaseURL)
	if err != nil {
		errors = append(errors, ValidationError{
			Field:   "database_url",
			Value:   c.DatabaseURL,
			Message: "database URL must be a valid URL",
		})
		return errors
	}

	// Check for required components
	if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" {
		errors = append(errors, ValidationError{
			Field:   "database_url",
			Value:   parsedURL.Scheme,
			Message: "database URL must use postgres or postgresql scheme",
		})
	}

	if parsedURL.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "database_url",
			Value:   c.DatabaseURL,
			Message: "database URL must include host",
		})
	}

	if parsedURL.Path == "" || parsedURL.Path == "/" {
		errors = append(errors, ValidationError{
			Field:   "database_url",
			Value:   c.DatabaseURL,
			Message: "database URL must include database name",
		})
	}

	return errors
}

func (c *Config) validateStorageBackend() ValidationErrors {
	var errors ValidationErrors

	if c.StorageBackend != StorageBackendPostgres && c.StorageBackend != StorageBackendMemory {
		errors = append(errors, ValidationError{
			Field:   "storage_backend",
			Value:   c.StorageBackend,
			Message: "storage backend must be one of: postgres, memory",
		})
	}

	if c.StorageBackend == StorageBackendMemory && c.Environment == "production" {
		errors = append(errors, ValidationError{
			Field:   "storage_backend",
			Value:   c.StorageBackend,
			Message: "memory storage backend is not durable and cannot be used in production",
		})
	}

	return errors
}

func (c *Config) validateCache() ValidationErrors {
	var errors ValidationErrors

	if !c.Cache.Enabled {
		return errors
	}

	if c.Cache.Address == "" {
		errors = append(errors, ValidationError{
			Field:   "cache.address",
			Value:   c.Cache.Address,
			Message: "cache address cannot be empty when cache is enabled",
		})
	} else if _, _, err := net.SplitHostPort(c.Cache.Address); err != nil {
		errors = append(errors, ValidationError{
			Field:   "cache.address",
			Value:   c.Cache.Address,
			Message: "cache address must be in host:port form",
		})
	}

	if c.Cache.Database < 0 || c.Cache.Database > 15 {
		errors = append(errors, ValidationError{
			Field:   "cache.database",
			Value:   c.Cache.Database,
			Message: "cache database must be between 0 and 15",
		})
	}

	if c.Cache.DefaultTTL <= 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.default_ttl",
			Value:   c.Cache.DefaultTTL,
			Message: "cache TTL must be greater than 0",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	isValidLevel := false
	for _, level := range validLevels {
		if strings.EqualFold(c.Logging.Level, level) {
			isValidLevel = true
			break
		}
	}

	if !isValidLevel {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "logging level must be one of: debug, info, warn, error",
		})
	}

	// Validate log format
	validFormats := []string{"json", "text", "console"}
	isValidFormat := false
	for _, format := range validFormats {
		if strings.EqualFold(c.Logging.Format, format) {
			isValidFormat = true
			break
		}
	}

	if !isValidFormat {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: "logging format must be one of: json, text, console",
		})
	}

	return errors
}

func (c *Config) validateServerTimeouts() ValidationErrors {
	var errors ValidationErrors

	// Validate read timeout
	if c.Server.ReadTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.read_timeout",
			Value:   c.Server.ReadTimeout,
			Message: "read timeout must be greater than 0",
		})
	} else if c.Server.ReadTimeout > 5*time.Minute {
		errors = append(errors, ValidationError{
			Field:   "server.read_timeout",
			Value:   c.Server.ReadTimeout,
			Message: "read timeout should not exceed 5 minutes",
		})
	}

	// Validate write timeout
	if c.Server.WriteTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.write_timeout",
			Value:   c.Server.WriteTimeout,
			Message: "write timeout must be greater than 0",
		})
	} else if c.Server.WriteTimeout > 5*time.Minute {
		errors = append(errors, ValidationError{
			Field:   "server.write_timeout",
			Value:   c.Server.WriteTimeout,
			Message: "write timeout should not exceed 5 minutes",
		})
	}

	// Validate idle timeout
	if c.Server.IdleTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.idle_timeout",
			Value:   c.Server.IdleTimeout,
			Message: "idle timeout must be greater than 0",
		})
	}

	return errors
}

// MustValidate validates the configuration and panics on error
// Useful for startup scenarios where invalid config should crash the application
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("configuration validation failed: %v", err))
	}
}
