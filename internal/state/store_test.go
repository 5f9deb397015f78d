package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"unit-preferences/internal/domain/preferences"
)

// MockService is a mock implementation of preferences.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) GetPreferences(ctx context.Context, userID string) (*preferences.PreferenceSet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*preferences.PreferenceSet), args.Error(1)
}

func (m *MockService) CreatePreferences(ctx context.Context, userID string, data preferences.OnboardingData) (*preferences.PreferenceSet, error) {
	args := m.Called(ctx, userID, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*preferences.PreferenceSet), args.Error(1)
}

func (m *MockService) UpdatePreferences(ctx context.Context, userID string, update preferences.PreferencesUpdate) (*preferences.PreferenceSet, error) {
	args := m.Called(ctx, userID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*preferences.PreferenceSet), args.Error(1)
}

func (m *MockService) DeletePreferences(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockService) CheckAdvancedLogging(ctx context.Context, userID string) preferences.FlagResult {
	return m.Called(ctx, userID).Get(0).(preferences.FlagResult)
}

func (m *MockService) IsAdvancedLoggingEnabled(ctx context.Context, userID string) bool {
	return m.Called(ctx, userID).Bool(0)
}

func persisted(userID string, weight preferences.WeightUnit) *preferences.PreferenceSet {
	now := time.Now()
	return &preferences.PreferenceSet{
		ID:                   "rec-" + userID,
		UserID:               userID,
		BodyWeightUnit:       weight,
		StrengthTrainingUnit: preferences.WeightUnitKilograms,
		BodyMeasurementUnit:  preferences.MeasurementUnitCentimeters,
		DistanceUnit:         preferences.DistanceUnitKilometers,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestPreferencesStore_InitialState(t *testing.T) {
	store := NewPreferencesStore(new(MockService), nil)

	assert.Equal(t, State{}, store.Snapshot())
	assert.Nil(t, store.Preferences())
	assert.False(t, store.IsLoading())
	assert.False(t, store.IsInitialized())
	assert.Empty(t, store.ErrorMessage())
}

func TestPreferencesStore_LoadFailure(t *testing.T) {
	ctx := context.Background()
	svc := new(MockService)
	svc.On("GetPreferences", mock.Anything, "u1").Return(persisted("u1", preferences.WeightUnitPounds), nil).Once()
	svc.On("GetPreferences", mock.Anything, "u1").Return(nil, errors.New("backend down")).Once()

	store := NewPreferencesStore(svc, nil)
	store.LoadUserPreferences(ctx, "u1")
	require.NotNil(t, store.Preferences())

	st := store.LoadUserPreferences(ctx, "u1")

	assert.False(t, st.IsLoading)
	assert.Nil(t, st.Preferences)
	assert.Equal(t, "Failed to load user preferences", st.Error)
	assert.True(t, st.IsInitialized)
	assert.Equal(t, st, store.Snapshot())
}

func TestPreferencesStore_FirstLoadFailureStillInitializes(t *testing.T) {
	svc := new(MockService)
	svc.On("GetPreferences", mock.Anything, "u1").Return(nil, errors.New("rejected"))

	store := NewPreferencesStore(svc, nil)
	store.LoadUserPreferences(context.Background(), "u1")

	assert.Equal(t, State{Error: ErrMsgLoad, IsInitialized: true}, store.Snapshot())
}

func TestPreferencesStore_LoadSuccess(t *testing.T) {
	svc := new(MockService)
	stored := persisted("u1", preferences.WeightUnitPounds)
	svc.On("GetPreferences", mock.Anything, "u1").Return(stored, nil)

	store := NewPreferencesStore(svc, nil)
	st := store.LoadUserPreferences(context.Background(), "u1")

	assert.Equal(t, stored, st.Preferences)
	assert.Empty(t, st.Error)
	assert.True(t, st.IsInitialized)
	assert.False(t, store.IsMetricSystem())
}

func TestPreferencesStore_WriteFailuresKeepPreviousValue(t *testing.T) {
	ctx := context.Background()
	pounds := preferences.WeightUnitPounds
	update := preferences.PreferencesUpdate{BodyWeightUnit: &pounds}
	onboarding := preferences.OnboardingData{
		BodyWeightUnit:       preferences.WeightUnitPounds,
		StrengthTrainingUnit: preferences.WeightUnitPounds,
		BodyMeasurementUnit:  preferences.MeasurementUnitInches,
		DistanceUnit:         preferences.DistanceUnitMiles,
	}

	svc := new(MockService)
	previous := persisted("u1", preferences.WeightUnitKilograms)
	svc.On("GetPreferences", mock.Anything, "u1").Return(previous, nil)
	svc.On("CreatePreferences", mock.Anything, "u1", onboarding).Return(nil, preferences.ErrDuplicate)
	svc.On("UpdatePreferences", mock.Anything, "u1", update).Return(nil, preferences.ErrInvalidPreferences)

	store := NewPreferencesStore(svc, nil)
	store.LoadUserPreferences(ctx, "u1")

	st := store.CreateUserPreferences(ctx, "u1", onboarding)
	assert.Equal(t, "Failed to create user preferences", st.Error)
	assert.Equal(t, previous, st.Preferences)
	assert.False(t, st.IsLoading)

	st = store.UpdateUserPreferences(ctx, "u1", update)
	assert.Equal(t, "Failed to update user preferences", st.Error)
	assert.Equal(t, previous, st.Preferences)
	assert.False(t, st.IsLoading)
}

func TestPreferencesStore_SuccessClearsError(t *testing.T) {
	ctx := context.Background()
	pounds := preferences.WeightUnitPounds
	update := preferences.PreferencesUpdate{BodyWeightUnit: &pounds}

	svc := new(MockService)
	svc.On("GetPreferences", mock.Anything, "u1").Return(nil, errors.New("flaky"))
	svc.On("UpdatePreferences", mock.Anything, "u1", update).Return(persisted("u1", pounds), nil)

	store := NewPreferencesStore(svc, nil)
	store.LoadUserPreferences(ctx, "u1")
	require.Equal(t, ErrMsgLoad, store.ErrorMessage())

	st := store.UpdateUserPreferences(ctx, "u1", update)
	assert.Empty(t, st.Error)
	assert.Equal(t, pounds, st.Preferences.BodyWeightUnit)
}

func TestPreferencesStore_TransitionsAreObservable(t *testing.T) {
	svc := new(MockService)
	svc.On("GetPreferences", mock.Anything, "u1").Return(nil, errors.New("rejected"))

	store := NewPreferencesStore(svc, nil)

	var seen []State
	unsubscribe := store.Subscribe(func(st State) { seen = append(seen, st) })

	store.LoadUserPreferences(context.Background(), "u1")

	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsLoading)
	assert.Empty(t, seen[0].Error)
	assert.False(t, seen[0].IsInitialized)
	assert.False(t, seen[1].IsLoading)
	assert.Equal(t, ErrMsgLoad, seen[1].Error)

	unsubscribe()
	unsubscribe()
	store.LoadUserPreferences(context.Background(), "u1")
	assert.Len(t, seen, 2)
}

func TestPreferencesStore_DerivedViewsUseDefaults(t *testing.T) {
	store := NewPreferencesStore(new(MockService), nil)
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	view := store.CurrentOrDefault()
	assert.Empty(t, view.ID)
	assert.Empty(t, view.UserID)
	assert.Equal(t, fixed, view.CreatedAt)
	assert.True(t, store.IsMetricSystem())
	assert.False(t, store.IsAdvancedLoggingEnabled())

	assert.False(t, store.IsInitialized(), "derived reads never mutate state")
	assert.Nil(t, store.Preferences())
}

func TestPreferencesStore_AdvancedLoggingFromCachedRecord(t *testing.T) {
	svc := new(MockService)
	stored := persisted("u1", preferences.WeightUnitKilograms)
	stored.AdvancedLoggingEnabled = true
	svc.On("GetPreferences", mock.Anything, "u1").Return(stored, nil)

	store := NewPreferencesStore(svc, nil)
	store.LoadUserPreferences(context.Background(), "u1")

	assert.True(t, store.IsAdvancedLoggingEnabled())
	assert.True(t, store.IsMetricSystem())
}

func TestPreferencesStore_SnapshotIsACopy(t *testing.T) {
	svc := new(MockService)
	svc.On("GetPreferences", mock.Anything, "u1").Return(persisted("u1", preferences.WeightUnitKilograms), nil)

	store := NewPreferencesStore(svc, nil)
	store.LoadUserPreferences(context.Background(), "u1")

	st := store.Snapshot()
	st.Preferences.BodyWeightUnit = preferences.WeightUnitPounds

	assert.Equal(t, preferences.WeightUnitKilograms, store.Preferences().BodyWeightUnit)
}

func TestPreferencesStore_SetServiceAndReset(t *testing.T) {
	ctx := context.Background()

	failing := new(MockService)
	failing.On("GetPreferences", mock.Anything, "u1").Return(nil, errors.New("nope"))

	working := new(MockService)
	working.On("GetPreferences", mock.Anything, "u1").Return(persisted("u1", preferences.WeightUnitKilograms), nil)

	store := NewPreferencesStore(failing, nil)
	store.LoadUserPreferences(ctx, "u1")
	assert.Equal(t, ErrMsgLoad, store.ErrorMessage())

	store.SetService(working)
	store.LoadUserPreferences(ctx, "u1")
	assert.NotNil(t, store.Preferences())
	working.AssertExpectations(t)

	store.Reset()
	assert.Equal(t, State{}, store.Snapshot())
}

// gatedService blocks every call until released and records call order
type gatedService struct {
	MockService
	mu      sync.Mutex
	order   []string
	started chan string
	release chan struct{}
}

func (g *gatedService) UpdatePreferences(ctx context.Context, userID string, update preferences.PreferencesUpdate) (*preferences.PreferenceSet, error) {
	g.started <- string(*update.BodyWeightUnit)
	<-g.release

	g.mu.Lock()
	g.order = append(g.order, string(*update.BodyWeightUnit))
	g.mu.Unlock()

	return persisted(userID, *update.BodyWeightUnit), nil
}

func TestPreferencesStore_ActionsAreSerialized(t *testing.T) {
	ctx := context.Background()
	svc := &gatedService{
		started: make(chan string, 2),
		release: make(chan struct{}),
	}
	store := NewPreferencesStore(svc, nil)

	kg := preferences.WeightUnitKilograms
	lbs := preferences.WeightUnitPounds

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.UpdateUserPreferences(ctx, "u1", preferences.PreferencesUpdate{BodyWeightUnit: &kg})
	}()

	assert.Equal(t, "kg", <-svc.started)

	// Reads do not wait behind the running action
	assert.True(t, store.IsLoading())

	wg.Add(1)
	go func() {
		defer wg.Done()
		store.UpdateUserPreferences(ctx, "u1", preferences.PreferencesUpdate{BodyWeightUnit: &lbs})
	}()

	select {
	case unit := <-svc.started:
		t.Fatalf("second action started before the first finished: %s", unit)
	case <-time.After(50 * time.Millisecond):
	}

	svc.release <- struct{}{}
	assert.Equal(t, "lbs", <-svc.started)
	svc.release <- struct{}{}
	wg.Wait()

	assert.Equal(t, []string{"kg", "lbs"}, svc.order)
	assert.Equal(t, lbs, store.Preferences().BodyWeightUnit)
	assert.False(t, store.IsLoading())
}

func TestPreferencesStore_ListenerCanCallActions(t *testing.T) {
	svc := new(MockService)
	svc.On("GetPreferences", mock.Anything, "u1").Return(persisted("u1", preferences.WeightUnitKilograms), nil)

	store := NewPreferencesStore(svc, nil)

	var seen []State
	refreshed := false
	store.Subscribe(func(st State) {
		seen = append(seen, st)
		if !st.IsLoading && !refreshed {
			refreshed = true
			store.LoadUserPreferences(context.Background(), "u1")
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.LoadUserPreferences(context.Background(), "u1")
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("action started from a listener never returned")
	}

	svc.AssertNumberOfCalls(t, "GetPreferences", 2)
	require.Len(t, seen, 4)
	assert.True(t, seen[0].IsLoading)
	assert.False(t, seen[1].IsLoading)
	assert.True(t, seen[2].IsLoading)
	assert.False(t, seen[3].IsLoading)
	assert.NotNil(t, seen[3].Preferences)
	assert.False(t, store.IsLoading())
}

func TestPreferencesStore_DeleteUserPreferences(t *testing.T) {
	ctx := context.Background()

	t.Run("success drops the cached record", func(t *testing.T) {
		svc := new(MockService)
		svc.On("GetPreferences", mock.Anything, "u1").Return(persisted("u1", preferences.WeightUnitPounds), nil)
		svc.On("DeletePreferences", mock.Anything, "u1").Return(nil)

		store := NewPreferencesStore(svc, nil)
		store.LoadUserPreferences(ctx, "u1")
		require.NotNil(t, store.Preferences())

		st, err := store.DeleteUserPreferences(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, st.Preferences)
		assert.Empty(t, st.Error)
		assert.True(t, st.IsInitialized)
		assert.True(t, store.IsMetricSystem(), "derived reads fall back to defaults")
	})

	t.Run("failure keeps the cached record", func(t *testing.T) {
		svc := new(MockService)
		svc.On("GetPreferences", mock.Anything, "u1").Return(persisted("u1", preferences.WeightUnitPounds), nil)
		svc.On("DeletePreferences", mock.Anything, "u1").Return(preferences.ErrNotFound)

		store := NewPreferencesStore(svc, nil)
		store.LoadUserPreferences(ctx, "u1")

		st, err := store.DeleteUserPreferences(ctx, "u1")
		assert.ErrorIs(t, err, preferences.ErrNotFound)
		assert.Equal(t, ErrMsgDelete, st.Error)
		require.NotNil(t, st.Preferences)
		assert.Equal(t, preferences.WeightUnitPounds, st.Preferences.BodyWeightUnit)
		assert.False(t, st.IsLoading)
	})
}
