package implementations

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unit-preferences/internal/domain/preferences"
)

const testRecordID = "0b6f2b44-4a8c-4c1e-9d51-6f0f3c1e2a10"

var preferenceRowColumns = []string{
	"id", "user_id", "body_weight_unit", "strength_training_unit",
	"body_measurement_unit", "distance_unit", "advanced_logging_enabled",
	"created_at", "updated_at",
}

func newMockRepository(t *testing.T) (preferences.Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPreferencesRepository(db, nil), mock
}

func metricData(userID string) preferences.PreferencesData {
	data, _ := preferences.CreateDefault(userID)
	return data
}

func TestPreferencesRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("returns generated id", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO user_preferences")).
			WithArgs("u1", "kg", "kg", "cm", "km", false).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testRecordID))

		id, err := repo.Create(ctx, metricData("u1"))
		require.NoError(t, err)
		assert.Equal(t, testRecordID, id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to duplicate", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO user_preferences")).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

		_, err := repo.Create(ctx, metricData("u1"))
		assert.ErrorIs(t, err, preferences.ErrDuplicate)
		assert.Contains(t, err.Error(), "duplicate key value")
	})

	t.Run("other failures map to persistence error", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO user_preferences")).
			WillReturnError(errors.New("connection reset by peer"))

		_, err := repo.Create(ctx, metricData("u1"))
		assert.ErrorIs(t, err, preferences.ErrPersistence)
		assert.Contains(t, err.Error(), "connection reset by peer")
	})
}

func TestPreferencesRepository_FindByUserID(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM user_preferences WHERE user_id = $1")).
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows(preferenceRowColumns).
				AddRow(testRecordID, "u1", "lbs", "kg", "in", "mi", true, now, now))

		p, err := repo.FindByUserID(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, testRecordID, p.ID)
		assert.Equal(t, preferences.WeightUnitPounds, p.BodyWeightUnit)
		assert.Equal(t, preferences.DistanceUnitMiles, p.DistanceUnit)
		assert.True(t, p.AdvancedLoggingEnabled)
		assert.Equal(t, now, p.UpdatedAt)
	})

	t.Run("absent is not an error", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM user_preferences WHERE user_id = $1")).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(preferenceRowColumns))

		p, err := repo.FindByUserID(ctx, "ghost")
		assert.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("corrupt unit names the field", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM user_preferences WHERE user_id = $1")).
			WillReturnRows(sqlmock.NewRows(preferenceRowColumns).
				AddRow(testRecordID, "u1", "kg", "kg", "cm", "leagues", false, now, now))

		p, err := repo.FindByUserID(ctx, "u1")
		assert.Nil(t, p)
		var parseErr *preferences.UnitParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "distance_unit", parseErr.Field)
		assert.Equal(t, "leagues", parseErr.Value)
	})
}

func TestPreferencesRepository_FindByID(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed id matches nothing", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		p, err := repo.FindByID(ctx, "not-a-uuid")
		assert.NoError(t, err)
		assert.Nil(t, p)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM user_preferences WHERE id = $1")).
			WithArgs(testRecordID).
			WillReturnError(sql.ErrNoRows)

		p, err := repo.FindByID(ctx, testRecordID)
		assert.NoError(t, err)
		assert.Nil(t, p)
	})
}

func TestPreferencesRepository_Update(t *testing.T) {
	ctx := context.Background()
	pounds := preferences.WeightUnitPounds
	enabled := true

	t.Run("sets only present fields", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectExec(regexp.QuoteMeta(
			"UPDATE user_preferences SET body_weight_unit = $1, advanced_logging_enabled = $2, updated_at = GREATEST(",
		)).
			WithArgs("lbs", true, testRecordID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Update(ctx, testRecordID, preferences.PreferencesUpdate{
			BodyWeightUnit:         &pounds,
			AdvancedLoggingEnabled: &enabled,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows is not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE user_preferences SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(ctx, testRecordID, preferences.PreferencesUpdate{BodyWeightUnit: &pounds})
		assert.ErrorIs(t, err, preferences.ErrNotFound)
	})

	t.Run("malformed id is not found", func(t *testing.T) {
		repo, _ := newMockRepository(t)

		err := repo.Update(ctx, "42", preferences.PreferencesUpdate{BodyWeightUnit: &pounds})
		assert.ErrorIs(t, err, preferences.ErrNotFound)
	})
}

func TestPreferencesRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deleted", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_preferences WHERE id = $1")).
			WithArgs(testRecordID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Delete(ctx, testRecordID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows is not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_preferences")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(ctx, testRecordID), preferences.ErrNotFound)
	})
}

func TestPreferencesRepository_UpsertByUser(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (user_id)")).
		WithArgs("u1", "kg", "kg", "cm", "km", false).
		WillReturnRows(sqlmock.NewRows(preferenceRowColumns).
			AddRow(testRecordID, "u1", "kg", "kg", "cm", "km", false, now, now))

	p, err := repo.UpsertByUser(ctx, "u1", metricData("u1"))
	require.NoError(t, err)
	assert.Equal(t, testRecordID, p.ID)
	assert.Equal(t, preferences.UnitSystemMetric, preferences.Classify(*p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildUpdateQuery(t *testing.T) {
	t.Run("empty update only checks existence", func(t *testing.T) {
		query, args := buildUpdateQuery(testRecordID, preferences.PreferencesUpdate{})
		assert.Equal(t, "UPDATE user_preferences SET updated_at = updated_at WHERE id = $1", query)
		assert.Equal(t, []interface{}{testRecordID}, args)
	})

	t.Run("all fields", func(t *testing.T) {
		full := metricData("u1").Update()
		query, args := buildUpdateQuery(testRecordID, full)
		assert.Contains(t, query, "distance_unit = $4")
		assert.Contains(t, query, "WHERE id = $6")
		assert.Len(t, args, 6)
	})
}
