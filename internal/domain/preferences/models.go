package preferences

import (
	"strings"
	"time"
)

// WeightUnit is the unit used for body weight and strength training loads
type WeightUnit string

const (
	WeightUnitKilograms WeightUnit = "kg"
	WeightUnitPounds    WeightUnit = "lbs"
)

// MeasurementUnit is the unit used for body measurements
type MeasurementUnit string

const (
	MeasurementUnitCentimeters MeasurementUnit = "cm"
	MeasurementUnitInches      MeasurementUnit = "in"
)

// DistanceUnit is the unit used for distances
type DistanceUnit string

const (
	DistanceUnitKilometers DistanceUnit = "km"
	DistanceUnitMiles      DistanceUnit = "mi"
)

// UnitSystem classifies a preference set as a whole
type UnitSystem string

const (
	UnitSystemMetric   UnitSystem = "metric"
	UnitSystemImperial UnitSystem = "imperial"
	UnitSystemMixed    UnitSystem = "mixed"
)

// IsValid reports whether u is one of the declared weight units
func (u WeightUnit) IsValid() bool {
	return u == WeightUnitKilograms || u == WeightUnitPounds
}

// IsValid reports whether u is one of the declared measurement units
func (u MeasurementUnit) IsValid() bool {
	return u == MeasurementUnitCentimeters || u == MeasurementUnitInches
}

// IsValid reports whether u is one of the declared distance units
func (u DistanceUnit) IsValid() bool {
	return u == DistanceUnitKilometers || u == DistanceUnitMiles
}

// PreferenceSet holds a single user's unit choices and feature toggles.
// ID is empty for a synthesized default that has never been persisted.
type PreferenceSet struct {
	ID                     string          `json:"id"`
	UserID                 string          `json:"user_id"`
	BodyWeightUnit         WeightUnit      `json:"body_weight_unit"`
	StrengthTrainingUnit   WeightUnit      `json:"strength_training_unit"`
	BodyMeasurementUnit    MeasurementUnit `json:"body_measurement_unit"`
	DistanceUnit           DistanceUnit    `json:"distance_unit"`
	AdvancedLoggingEnabled bool            `json:"advanced_logging_enabled"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// IsPersisted reports whether the set was read back from storage
func (p PreferenceSet) IsPersisted() bool {
	return p.ID != ""
}

// Data strips the storage-assigned fields
func (p PreferenceSet) Data() PreferencesData {
	return PreferencesData{
		UserID:                 p.UserID,
		BodyWeightUnit:         p.BodyWeightUnit,
		StrengthTrainingUnit:   p.StrengthTrainingUnit,
		BodyMeasurementUnit:    p.BodyMeasurementUnit,
		DistanceUnit:           p.DistanceUnit,
		AdvancedLoggingEnabled: p.AdvancedLoggingEnabled,
	}
}

// PreferencesData is a PreferenceSet without id and timestamps
type PreferencesData struct {
	UserID                 string          `json:"user_id"`
	BodyWeightUnit         WeightUnit      `json:"body_weight_unit"`
	StrengthTrainingUnit   WeightUnit      `json:"strength_training_unit"`
	BodyMeasurementUnit    MeasurementUnit `json:"body_measurement_unit"`
	DistanceUnit           DistanceUnit    `json:"distance_unit"`
	AdvancedLoggingEnabled bool            `json:"advanced_logging_enabled"`
}

// Apply returns a copy of d with every field present in update overwritten
func (d PreferencesData) Apply(update PreferencesUpdate) PreferencesData {
	if update.BodyWeightUnit != nil {
		d.BodyWeightUnit = *update.BodyWeightUnit
	}
	if update.StrengthTrainingUnit != nil {
		d.StrengthTrainingUnit = *update.StrengthTrainingUnit
	}
	if update.BodyMeasurementUnit != nil {
		d.BodyMeasurementUnit = *update.BodyMeasurementUnit
	}
	if update.DistanceUnit != nil {
		d.DistanceUnit = *update.DistanceUnit
	}
	if update.AdvancedLoggingEnabled != nil {
		d.AdvancedLoggingEnabled = *update.AdvancedLoggingEnabled
	}
	return d
}

// Update returns the full set of fields of d as a partial update
func (d PreferencesData) Update() PreferencesUpdate {
	return PreferencesUpdate{
		BodyWeightUnit:         &d.BodyWeightUnit,
		StrengthTrainingUnit:   &d.StrengthTrainingUnit,
		BodyMeasurementUnit:    &d.BodyMeasurementUnit,
		DistanceUnit:           &d.DistanceUnit,
		AdvancedLoggingEnabled: &d.AdvancedLoggingEnabled,
	}
}

// OnboardingData is what the onboarding flow collects.
// Advanced logging is never chosen during onboarding.
type OnboardingData struct {
	BodyWeightUnit       WeightUnit      `json:"body_weight_unit"`
	StrengthTrainingUnit WeightUnit      `json:"strength_training_unit"`
	BodyMeasurementUnit  MeasurementUnit `json:"body_measurement_unit"`
	DistanceUnit         DistanceUnit    `json:"distance_unit"`
}

// Update returns the onboarding choices as a partial update
func (o OnboardingData) Update() PreferencesUpdate {
	return PreferencesUpdate{
		BodyWeightUnit:       &o.BodyWeightUnit,
		StrengthTrainingUnit: &o.StrengthTrainingUnit,
		BodyMeasurementUnit:  &o.BodyMeasurementUnit,
		DistanceUnit:         &o.DistanceUnit,
	}
}

// PreferencesUpdate is a partial update; nil fields are left untouched
type PreferencesUpdate struct {
	BodyWeightUnit         *WeightUnit      `json:"body_weight_unit,omitempty"`
	StrengthTrainingUnit   *WeightUnit      `json:"strength_training_unit,omitempty"`
	BodyMeasurementUnit    *MeasurementUnit `json:"body_measurement_unit,omitempty"`
	DistanceUnit           *DistanceUnit    `json:"distance_unit,omitempty"`
	AdvancedLoggingEnabled *bool            `json:"advanced_logging_enabled,omitempty"`
}

// IsEmpty reports whether the update carries no fields
func (u PreferencesUpdate) IsEmpty() bool {
	return u.BodyWeightUnit == nil &&
		u.StrengthTrainingUnit == nil &&
		u.BodyMeasurementUnit == nil &&
		u.DistanceUnit == nil &&
		u.AdvancedLoggingEnabled == nil
}

// RawRecord carries persisted fields before their unit values are trusted
type RawRecord struct {
	ID                     string
	UserID                 string
	BodyWeightUnit         string
	StrengthTrainingUnit   string
	BodyMeasurementUnit    string
	DistanceUnit           string
	AdvancedLoggingEnabled bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// CreateDefault returns the default preferences for userID: all metric, advanced logging off
func CreateDefault(userID string) (PreferencesData, error) {
	if strings.TrimSpace(userID) == "" {
		return PreferencesData{}, ErrEmptyUserID
	}

	return PreferencesData{
		UserID:                 userID,
		BodyWeightUnit:         WeightUnitKilograms,
		StrengthTrainingUnit:   WeightUnitKilograms,
		BodyMeasurementUnit:    MeasurementUnitCentimeters,
		DistanceUnit:           DistanceUnitKilometers,
		AdvancedLoggingEnabled: false,
	}, nil
}

// DefaultView synthesizes an unpersisted preference set stamped with now.
// userID may be empty; the view is never written anywhere.
func DefaultView(userID string, now time.Time) PreferenceSet {
	return PreferenceSet{
		UserID:               userID,
		BodyWeightUnit:       WeightUnitKilograms,
		StrengthTrainingUnit: WeightUnitKilograms,
		BodyMeasurementUnit:  MeasurementUnitCentimeters,
		DistanceUnit:         DistanceUnitKilometers,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Classify reports whether all four units are metric, all imperial, or a mix
func Classify(p PreferenceSet) UnitSystem {
	if p.BodyWeightUnit == WeightUnitKilograms &&
		p.StrengthTrainingUnit == WeightUnitKilograms &&
		p.BodyMeasurementUnit == MeasurementUnitCentimeters &&
		p.DistanceUnit == DistanceUnitKilometers {
		return UnitSystemMetric
	}

	if p.BodyWeightUnit == WeightUnitPounds &&
		p.StrengthTrainingUnit == WeightUnitPounds &&
		p.BodyMeasurementUnit == MeasurementUnitInches &&
		p.DistanceUnit == DistanceUnitMiles {
		return UnitSystemImperial
	}

	return UnitSystemMixed
}
