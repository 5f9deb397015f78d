package testutils

import (
	"context"
	"fmt"
	"math/rand"

	"unit-preferences/internal/config"
	"unit-preferences/internal/domain/preferences"
	"unit-preferences/internal/services"
)

// TestSuite provides common test utilities for integration tests
type TestSuite struct {
	Containers *TestContainers
	Container  *services.Container
}

// SetupTestSuite starts the containers and builds a Postgres-backed services container.
// withCache wires the Valkey client into the preferences service.
func SetupTestSuite(ctx context.Context, withCache bool) (*TestSuite, error) {
	containers, err := SetupTestContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to setup test containers: %w", err)
	}

	cfg := &config.Config{
		Environment:    "test",
		DatabaseURL:    containers.DatabaseURL,
		StorageBackend: config.StorageBackendPostgres,
		Cache: config.CacheConfig{
			Enabled: withCache,
			Address: containers.RedisEndpoint,
		},
	}

	redisClient := containers.RedisClient
	if !withCache {
		redisClient = nil
	}

	container, err := services.NewContainer(cfg, containers.DB, redisClient, nil)
	if err != nil {
		_ = containers.Cleanup(ctx) //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("failed to create services container: %w", err)
	}

	return &TestSuite{
		Containers: containers,
		Container:  container,
	}, nil
}

// Cleanup cleans up all test resources
func (ts *TestSuite) Cleanup(ctx context.Context) error {
	// The Valkey client is closed with the containers
	return ts.Containers.Cleanup(ctx)
}

// ResetData clears all stored preferences and cached entries
func (ts *TestSuite) ResetData(ctx context.Context) error {
	if err := ts.Containers.ResetDatabase(ctx); err != nil {
		return err
	}
	return ts.Containers.FlushRedis(ctx)
}

// RandomUserID returns a user ID unlikely to collide across tests
func RandomUserID() string {
	return fmt.Sprintf("user-%d", rand.Int63())
}

// ImperialOnboarding returns onboarding choices with every unit imperial
func ImperialOnboarding() preferences.OnboardingData {
	return preferences.OnboardingData{
		BodyWeightUnit:       preferences.WeightUnitPounds,
		StrengthTrainingUnit: preferences.WeightUnitPounds,
		BodyMeasurementUnit:  preferences.MeasurementUnitInches,
		DistanceUnit:         preferences.DistanceUnitMiles,
	}
}

// MetricData returns fully metric preferences for userID
func MetricData(userID string) preferences.PreferencesData {
	data, _ := preferences.CreateDefault(userID) //nolint:errcheck // Callers pass non-empty IDs
	return data
}
