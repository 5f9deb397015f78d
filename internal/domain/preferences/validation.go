package preferences

import (
	"fmt"
	"strings"
)

const (
	fieldBodyWeightUnit       = "body_weight_unit"
	fieldStrengthTrainingUnit = "strength_training_unit"
	fieldBodyMeasurementUnit  = "body_measurement_unit"
	fieldDistanceUnit         = "distance_unit"
)

// Validate checks every present field against its declared unit set.
// Absent fields are ignored, so an empty update is valid.
func (u *PreferencesUpdate) Validate() error {
	if u == nil {
		return nil
	}

	if u.BodyWeightUnit != nil && !u.BodyWeightUnit.IsValid() {
		return fmt.Errorf("%w: %w", ErrInvalidPreferences,
			&UnitParseError{Field: fieldBodyWeightUnit, Value: string(*u.BodyWeightUnit)})
	}

	if u.StrengthTrainingUnit != nil && !u.StrengthTrainingUnit.IsValid() {
		return fmt.Errorf("%w: %w", ErrInvalidPreferences,
			&UnitParseError{Field: fieldStrengthTrainingUnit, Value: string(*u.StrengthTrainingUnit)})
	}

	if u.BodyMeasurementUnit != nil && !u.BodyMeasurementUnit.IsValid() {
		return fmt.Errorf("%w: %w", ErrInvalidPreferences,
			&UnitParseError{Field: fieldBodyMeasurementUnit, Value: string(*u.BodyMeasurementUnit)})
	}

	if u.DistanceUnit != nil && !u.DistanceUnit.IsValid() {
		return fmt.Errorf("%w: %w", ErrInvalidPreferences,
			&UnitParseError{Field: fieldDistanceUnit, Value: string(*u.DistanceUnit)})
	}

	return nil
}

// IsValid reports whether every present field of update is a member of its unit set
func IsValid(update PreferencesUpdate) bool {
	return update.Validate() == nil
}

// ParseWeightUnit parses a raw stored value for the named weight field
func ParseWeightUnit(field, raw string) (WeightUnit, error) {
	u := WeightUnit(raw)
	if !u.IsValid() {
		return "", &UnitParseError{Field: field, Value: raw}
	}
	return u, nil
}

// ParseMeasurementUnit parses a raw stored body measurement unit
func ParseMeasurementUnit(raw string) (MeasurementUnit, error) {
	u := MeasurementUnit(raw)
	if !u.IsValid() {
		return "", &UnitParseError{Field: fieldBodyMeasurementUnit, Value: raw}
	}
	return u, nil
}

// ParseDistanceUnit parses a raw stored distance unit
func ParseDistanceUnit(raw string) (DistanceUnit, error) {
	u := DistanceUnit(raw)
	if !u.IsValid() {
		return "", &UnitParseError{Field: fieldDistanceUnit, Value: raw}
	}
	return u, nil
}

// Reconstruct rebuilds a PreferenceSet from stored fields, re-validating every unit.
// Storage is not trusted: an unknown value fails with a *UnitParseError naming the field.
func Reconstruct(raw RawRecord) (*PreferenceSet, error) {
	if strings.TrimSpace(raw.UserID) == "" {
		return nil, fmt.Errorf("record %s: %w", raw.ID, ErrEmptyUserID)
	}

	bodyWeight, err := ParseWeightUnit(fieldBodyWeightUnit, raw.BodyWeightUnit)
	if err != nil {
		return nil, err
	}

	strength, err := ParseWeightUnit(fieldStrengthTrainingUnit, raw.StrengthTrainingUnit)
	if err != nil {
		return nil, err
	}

	measurement, err := ParseMeasurementUnit(raw.BodyMeasurementUnit)
	if err != nil {
		return nil, err
	}

	distance, err := ParseDistanceUnit(raw.DistanceUnit)
	if err != nil {
		return nil, err
	}

	return &PreferenceSet{
		ID:                     raw.ID,
		UserID:                 raw.UserID,
		BodyWeightUnit:         bodyWeight,
		StrengthTrainingUnit:   strength,
		BodyMeasurementUnit:    measurement,
		DistanceUnit:           distance,
		AdvancedLoggingEnabled: raw.AdvancedLoggingEnabled,
		CreatedAt:              raw.CreatedAt,
		UpdatedAt:              raw.UpdatedAt,
	}, nil
}
