package implementations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"unit-preferences/internal/domain/preferences"
	"unit-preferences/internal/observability"
)

const preferencesColumns = `id, user_id, body_weight_unit, strength_training_unit,
		       body_measurement_unit, distance_unit, advanced_logging_enabled,
		       created_at, updated_at`

// Every successful update moves updated_at forward, even within one clock tick
const bumpUpdatedAt = "updated_at = GREATEST(NOW(), user_preferences.updated_at + INTERVAL '1 microsecond')"

// PreferencesRepositoryImpl implements preferences.Repository on Postgres
type PreferencesRepositoryImpl struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewPreferencesRepository creates a new Postgres-backed preferences repository
func NewPreferencesRepository(db *sql.DB, logger *observability.Logger) preferences.Repository {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	return &PreferencesRepositoryImpl{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new record and returns its generated ID
func (r *PreferencesRepositoryImpl) Create(ctx context.Context, data preferences.PreferencesData) (string, error) {
	query := `
		INSERT INTO user_preferences (
			user_id, body_weight_unit, strength_training_unit,
			body_measurement_unit, distance_unit, advanced_logging_enabled
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		data.UserID,
		string(data.BodyWeightUnit),
		string(data.StrengthTrainingUnit),
		string(data.BodyMeasurementUnit),
		string(data.DistanceUnit),
		data.AdvancedLoggingEnabled,
	).Scan(&id)
	if err != nil {
		return "", r.fail(ctx, "create", data.UserID, err)
	}

	return id, nil
}

// FindByID retrieves a record by its generated ID; a malformed ID matches nothing
func (r *PreferencesRepositoryImpl) FindByID(ctx context.Context, id string) (*preferences.PreferenceSet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	query := `SELECT ` + preferencesColumns + ` FROM user_preferences WHERE id = $1`

	p, err := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, r.fail(ctx, "find_by_id", "", err)
	}

	return p, nil
}

// FindByUserID retrieves the record owned by userID
func (r *PreferencesRepositoryImpl) FindByUserID(ctx context.Context, userID string) (*preferences.PreferenceSet, error) {
	query := `SELECT ` + preferencesColumns + ` FROM user_preferences WHERE user_id = $1`

	p, err := r.scanOne(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, r.fail(ctx, "find_by_user_id", userID, err)
	}

	return p, nil
}

// Update writes only the fields present in update
func (r *PreferencesRepositoryImpl) Update(ctx context.Context, id string, update preferences.PreferencesUpdate) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: id %q", preferences.ErrNotFound, id)
	}

	query, args := buildUpdateQuery(id, update)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return r.fail(ctx, "update", "", err)
	}

	return r.requireAffected(ctx, "update", id, result)
}

// Delete removes a record by ID
func (r *PreferencesRepositoryImpl) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: id %q", preferences.ErrNotFound, id)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM user_preferences WHERE id = $1`, id)
	if err != nil {
		return r.fail(ctx, "delete", "", err)
	}

	return r.requireAffected(ctx, "delete", id, result)
}

// UpsertByUser creates or updates the record for userID in a single statement
func (r *PreferencesRepositoryImpl) UpsertByUser(ctx context.Context, userID string, data preferences.PreferencesData) (*preferences.PreferenceSet, error) {
	query := `
		INSERT INTO user_preferences (
			user_id, body_weight_unit, strength_training_unit,
			body_measurement_unit, distance_unit, advanced_logging_enabled
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id)
		DO UPDATE SET
			body_weight_unit = EXCLUDED.body_weight_unit,
			strength_training_unit = EXCLUDED.strength_training_unit,
			body_measurement_unit = EXCLUDED.body_measurement_unit,
			distance_unit = EXCLUDED.distance_unit,
			advanced_logging_enabled = EXCLUDED.advanced_logging_enabled,
			` + bumpUpdatedAt + `
		RETURNING ` + preferencesColumns

	p, err := r.scanOne(r.db.QueryRowContext(ctx, query,
		userID,
		string(data.BodyWeightUnit),
		string(data.StrengthTrainingUnit),
		string(data.BodyMeasurementUnit),
		string(data.DistanceUnit),
		data.AdvancedLoggingEnabled,
	))
	if err != nil {
		return nil, r.fail(ctx, "upsert", userID, err)
	}
	if p == nil {
		return nil, r.fail(ctx, "upsert", userID, sql.ErrNoRows)
	}

	return p, nil
}

// scanOne reads a single row, returning (nil, nil) when there is none
func (r *PreferencesRepositoryImpl) scanOne(row *sql.Row) (*preferences.PreferenceSet, error) {
	var raw preferences.RawRecord
	err := row.Scan(
		&raw.ID,
		&raw.UserID,
		&raw.BodyWeightUnit,
		&raw.StrengthTrainingUnit,
		&raw.BodyMeasurementUnit,
		&raw.DistanceUnit,
		&raw.AdvancedLoggingEnabled,
		&raw.CreatedAt,
		&raw.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return preferences.Reconstruct(raw)
}

func (r *PreferencesRepositoryImpl) requireAffected(ctx context.Context, op, id string, result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return r.fail(ctx, op, "", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: id %q", preferences.ErrNotFound, id)
	}

	return nil
}

// fail logs the backend error and maps it onto the domain's error conditions
func (r *PreferencesRepositoryImpl) fail(ctx context.Context, op, userID string, err error) error {
	event := r.logger.Error(ctx).Err(err).Str("operation", op)
	if userID != "" {
		event = event.Str("user_id", userID)
	}
	event.Msg("Preferences repository operation failed")

	return mapPostgresError(op, err)
}

func mapPostgresError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return fmt.Errorf("%w: %s", preferences.ErrDuplicate, pqErr.Message)
		case "check_violation":
			return fmt.Errorf("%w: %s", preferences.ErrInvalidPreferences, pqErr.Message)
		}
	}

	return fmt.Errorf("%w: %s: %w", preferences.ErrPersistence, op, err)
}

// buildUpdateQuery renders a partial UPDATE; the id is always the last argument.
// An empty update touches nothing but still reports whether the row exists.
func buildUpdateQuery(id string, update preferences.PreferencesUpdate) (string, []interface{}) {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.BodyWeightUnit != nil {
		add("body_weight_unit", string(*update.BodyWeightUnit))
	}
	if update.StrengthTrainingUnit != nil {
		add("strength_training_unit", string(*update.StrengthTrainingUnit))
	}
	if update.BodyMeasurementUnit != nil {
		add("body_measurement_unit", string(*update.BodyMeasurementUnit))
	}
	if update.DistanceUnit != nil {
		add("distance_unit", string(*update.DistanceUnit))
	}
	if update.AdvancedLoggingEnabled != nil {
		add("advanced_logging_enabled", *update.AdvancedLoggingEnabled)
	}

	if len(sets) == 0 {
		sets = append(sets, "updated_at = updated_at")
	} else {
		sets = append(sets, bumpUpdatedAt)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE user_preferences SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	return query, args
}
