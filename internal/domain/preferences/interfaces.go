package preferences

import "context"

// Repository defines the persistence port for preference sets.
// Lookups return (nil, nil) when no record matches.
type Repository interface {
	// Create inserts a new record and returns its generated ID.
	// Fails with ErrDuplicate if userID already has a record.
	Create(ctx context.Context, data PreferencesData) (string, error)

	// FindByID retrieves a record by its generated ID
	FindByID(ctx context.Context, id string) (*PreferenceSet, error)

	// FindByUserID retrieves the record owned by userID
	FindByUserID(ctx context.Context, userID string) (*PreferenceSet, error)

	// Update applies only the fields present in update.
	// Fails with ErrNotFound if no row was affected.
	Update(ctx context.Context, id string, update PreferencesUpdate) error

	// Delete removes a record. Fails with ErrNotFound if no row was affected.
	Delete(ctx context.Context, id string) error

	// UpsertByUser atomically creates or updates the record keyed on userID
	// and returns the resulting record
	UpsertByUser(ctx context.Context, userID string, data PreferencesData) (*PreferenceSet, error)
}

// Service defines the business rules over the persistence port
type Service interface {
	// GetPreferences returns the stored record or an unpersisted default
	GetPreferences(ctx context.Context, userID string) (*PreferenceSet, error)

	// CreatePreferences stores onboarding choices, idempotently per user
	CreatePreferences(ctx context.Context, userID string, data OnboardingData) (*PreferenceSet, error)

	// UpdatePreferences applies a partial update, creating the record if needed
	UpdatePreferences(ctx context.Context, userID string, update PreferencesUpdate) (*PreferenceSet, error)

	// DeletePreferences removes the user's record
	DeletePreferences(ctx context.Context, userID string) error

	// CheckAdvancedLogging reports the flag together with any lookup failure
	CheckAdvancedLogging(ctx context.Context, userID string) FlagResult
	// IsAdvancedLoggingEnabled never fails; lookup errors read as false
	IsAdvancedLoggingEnabled(ctx context.Context, userID string) bool
}

// FlagResult is the outcome of a boolean lookup that may have failed
type FlagResult struct {
	Enabled bool
	Err     error
}

// OrDefault returns Enabled, or def when the lookup failed
func (r FlagResult) OrDefault(def bool) bool {
	if r.Err != nil {
		return def
	}
	return r.Enabled
}
