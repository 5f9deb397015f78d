package database

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration test helpers and setup functions

func setupTestDatabase(t *testing.T) *sql.DB {
	testDBURL := os.Getenv("TEST_DATABASE_URL")
	if testDBURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := NewConnection(testDBURL)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(context.Background(), db, nil), "Failed to run migrations")

	_, err = db.Exec("TRUNCATE TABLE user_preferences")
	require.NoError(t, err)

	return db
}

func TestIntegration_MigrationsAreIdempotent(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, db, nil))

	applied, err := NewMigrationManager(db).GetAppliedMigrations(ctx)
	require.NoError(t, err)

	migrations, err := EmbeddedMigrations()
	require.NoError(t, err)
	for _, m := range migrations {
		assert.True(t, applied[m.Version], "migration %s should be recorded", m.Version)
	}
}

func TestIntegration_Constraints(t *testing.T) {
	db := setupTestDatabase(t)

	tests := []struct {
		name     string
		query    string
		args     []interface{}
		wantCode string
	}{
		{
			name:     "unknown unit",
			query:    "INSERT INTO user_preferences (user_id, distance_unit) VALUES ($1, $2)",
			args:     []interface{}{"constraint-user", "leagues"},
			wantCode: "check_violation",
		},
		{
			name:     "blank user",
			query:    "INSERT INTO user_preferences (user_id) VALUES ($1)",
			args:     []interface{}{"   "},
			wantCode: "check_violation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Exec(tt.query, tt.args...)
			require.Error(t, err)

			var pqErr *pq.Error
			require.ErrorAs(t, err, &pqErr)
			assert.Equal(t, tt.wantCode, pqErr.Code.Name())
		})
	}

	t.Run("duplicate user", func(t *testing.T) {
		_, err := db.Exec("INSERT INTO user_preferences (user_id) VALUES ($1)", "dup-user")
		require.NoError(t, err)

		_, err = db.Exec("INSERT INTO user_preferences (user_id) VALUES ($1)", "dup-user")
		var pqErr *pq.Error
		require.ErrorAs(t, err, &pqErr)
		assert.Equal(t, "unique_violation", pqErr.Code.Name())
	})
}

func TestIntegration_Defaults(t *testing.T) {
	db := setupTestDatabase(t)

	var weight, strength, measurement, distance string
	var advanced bool
	err := db.QueryRow(`
		INSERT INTO user_preferences (user_id) VALUES ($1)
		RETURNING body_weight_unit, strength_training_unit, body_measurement_unit, distance_unit, advanced_logging_enabled`,
		"defaults-user",
	).Scan(&weight, &strength, &measurement, &distance, &advanced)
	require.NoError(t, err)

	assert.Equal(t, "kg", weight)
	assert.Equal(t, "kg", strength)
	assert.Equal(t, "cm", measurement)
	assert.Equal(t, "km", distance)
	assert.False(t, advanced)
}
