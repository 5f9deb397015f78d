package implementations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"unit-preferences/internal/domain/preferences"
)

// MemoryPreferencesRepository keeps preference sets in process memory.
// Used for local development and tests; it honours the same contract as Postgres.
type MemoryPreferencesRepository struct {
	byID     map[string]preferences.PreferenceSet
	byUserID map[string]string
	now      func() time.Time
	mu       sync.RWMutex
}

// Ensure MemoryPreferencesRepository implements Repository interface
var _ preferences.Repository = (*MemoryPreferencesRepository)(nil)

// NewMemoryPreferencesRepository creates an empty in-memory repository
func NewMemoryPreferencesRepository() *MemoryPreferencesRepository {
	return &MemoryPreferencesRepository{
		byID:     make(map[string]preferences.PreferenceSet),
		byUserID: make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new record and returns its generated ID
func (r *MemoryPreferencesRepository) Create(ctx context.Context, data preferences.PreferencesData) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUserID[data.UserID]; exists {
		return "", fmt.Errorf("%w: user %q", preferences.ErrDuplicate, data.UserID)
	}

	return r.insertLocked(data).ID, nil
}

// FindByID retrieves a record by ID
func (r *MemoryPreferencesRepository) FindByID(ctx context.Context, id string) (*preferences.PreferenceSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// FindByUserID retrieves the record owned by userID
func (r *MemoryPreferencesRepository) FindByUserID(ctx context.Context, userID string) (*preferences.PreferenceSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUserID[userID]
	if !ok {
		return nil, nil
	}

	p := r.byID[id]
	return &p, nil
}

// Update applies the fields present in update
func (r *MemoryPreferencesRepository) Update(ctx context.Context, id string, update preferences.PreferencesUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: id %q", preferences.ErrNotFound, id)
	}

	if update.IsEmpty() {
		return nil
	}

	r.byID[id] = r.applyLocked(p, p.Data().Apply(update))
	return nil
}

// Delete removes a record by ID
func (r *MemoryPreferencesRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: id %q", preferences.ErrNotFound, id)
	}

	delete(r.byID, id)
	delete(r.byUserID, p.UserID)
	return nil
}

// UpsertByUser creates or replaces the record for userID under a single lock
func (r *MemoryPreferencesRepository) UpsertByUser(ctx context.Context, userID string, data preferences.PreferencesData) (*preferences.PreferenceSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data.UserID = userID

	if id, exists := r.byUserID[userID]; exists {
		p := r.applyLocked(r.byID[id], data)
		r.byID[id] = p
		return &p, nil
	}

	p := r.insertLocked(data)
	return &p, nil
}

// Len returns the number of stored records
func (r *MemoryPreferencesRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}

func (r *MemoryPreferencesRepository) insertLocked(data preferences.PreferencesData) preferences.PreferenceSet {
	now := r.now()
	p := preferences.PreferenceSet{
		ID:                     uuid.New().String(),
		UserID:                 data.UserID,
		BodyWeightUnit:         data.BodyWeightUnit,
		StrengthTrainingUnit:   data.StrengthTrainingUnit,
		BodyMeasurementUnit:    data.BodyMeasurementUnit,
		DistanceUnit:           data.DistanceUnit,
		AdvancedLoggingEnabled: data.AdvancedLoggingEnabled,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	r.byID[p.ID] = p
	r.byUserID[p.UserID] = p.ID
	return p
}

// applyLocked overwrites the mutable fields and moves UpdatedAt strictly forward
func (r *MemoryPreferencesRepository) applyLocked(p preferences.PreferenceSet, data preferences.PreferencesData) preferences.PreferenceSet {
	p.BodyWeightUnit = data.BodyWeightUnit
	p.StrengthTrainingUnit = data.StrengthTrainingUnit
	p.BodyMeasurementUnit = data.BodyMeasurementUnit
	p.DistanceUnit = data.DistanceUnit
	p.AdvancedLoggingEnabled = data.AdvancedLoggingEnabled

	next := r.now()
	if floor := p.UpdatedAt.Add(time.Microsecond); next.Before(floor) {
		next = floor
	}
	p.UpdatedAt = next

	return p
}
