// Package state holds the client-side cache of a user's preferences and
// keeps it in step with the outcome of every service call.
package state

import (
	"context"
	"sync"
	"time"

	"unit-preferences/internal/domain/preferences"
	"unit-preferences/internal/observability"
)

// Fixed messages exposed through State.Error
const (
	ErrMsgLoad   = "Failed to load user preferences"
	ErrMsgCreate = "Failed to create user preferences"
	ErrMsgUpdate = "Failed to update user preferences"
	ErrMsgDelete = "Failed to delete user preferences"
)

// State is a point-in-time copy of the store
type State struct {
	Preferences   *preferences.PreferenceSet
	IsLoading     bool
	IsInitialized bool
	Error         string
}

// Listener receives a copy of the state after every transition
type Listener func(State)

type notification struct {
	state     State
	listeners []Listener
}

// PreferencesStore caches the last known preferences plus loading, error and
// initialized flags. Actions run one at a time in call order; reads never wait
// for an action to finish.
type PreferencesStore struct {
	actionMu sync.Mutex

	mu        sync.RWMutex
	service   preferences.Service
	state     State
	listeners map[uint64]Listener
	nextID    uint64

	// Transitions queue here and are delivered once the action lock is free
	notifyMu sync.Mutex
	pending  []notification
	draining bool

	logger *observability.Logger
	now    func() time.Time
}

// NewPreferencesStore creates an uninitialized store backed by service
func NewPreferencesStore(service preferences.Service, logger *observability.Logger) *PreferencesStore {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	return &PreferencesStore{
		service:   service,
		listeners: make(map[uint64]Listener),
		logger:    logger,
		now:       time.Now,
	}
}

// Preferences returns the cached record, or nil
func (s *PreferencesStore) Preferences() *preferences.PreferenceSet {
	return s.Snapshot().Preferences
}

// IsLoading reports whether an action is in flight
func (s *PreferencesStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsLoading
}

// IsInitialized reports whether any action has completed
func (s *PreferencesStore) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsInitialized
}

// ErrorMessage returns the message of the last failed action, or ""
func (s *PreferencesStore) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Error
}

// Snapshot returns a copy of all four fields
func (s *PreferencesStore) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every state transition and returns a func that removes it.
// Listeners run in transition order once the action that produced them has
// released the store, so the loading transition arrives just before the settled
// one and a listener may itself call store actions. With concurrent callers a
// listener can run on another caller's goroutine.
func (s *PreferencesStore) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// LoadUserPreferences fetches the user's preferences into the store.
// On failure the cached record is cleared.
func (s *PreferencesStore) LoadUserPreferences(ctx context.Context, userID string) State {
	st, _ := s.run(ctx, "load", userID, ErrMsgLoad, true, func(svc preferences.Service) (*preferences.PreferenceSet, error) {
		return svc.GetPreferences(ctx, userID)
	})
	return st
}

// CreateUserPreferences stores onboarding choices and caches the result.
// On failure the previously cached record is kept.
func (s *PreferencesStore) CreateUserPreferences(ctx context.Context, userID string, data preferences.OnboardingData) State {
	st, _ := s.run(ctx, "create", userID, ErrMsgCreate, false, func(svc preferences.Service) (*preferences.PreferenceSet, error) {
		return svc.CreatePreferences(ctx, userID, data)
	})
	return st
}

// UpdateUserPreferences applies a partial update and caches the result.
// On failure the previously cached record is kept.
func (s *PreferencesStore) UpdateUserPreferences(ctx context.Context, userID string, update preferences.PreferencesUpdate) State {
	st, _ := s.run(ctx, "update", userID, ErrMsgUpdate, false, func(svc preferences.Service) (*preferences.PreferenceSet, error) {
		return svc.UpdatePreferences(ctx, userID, update)
	})
	return st
}

// DeleteUserPreferences removes the stored record and drops it from the store,
// so derived reads fall back to defaults. On failure the cached record is kept.
// The service error is returned as well, since callers need to tell a missing
// record apart from a backend failure.
func (s *PreferencesStore) DeleteUserPreferences(ctx context.Context, userID string) (State, error) {
	return s.run(ctx, "delete", userID, ErrMsgDelete, false, func(svc preferences.Service) (*preferences.PreferenceSet, error) {
		return nil, svc.DeletePreferences(ctx, userID)
	})
}

// CurrentOrDefault returns the cached record, or an unpersisted default view
func (s *PreferencesStore) CurrentOrDefault() preferences.PreferenceSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state.Preferences != nil {
		return *s.state.Preferences
	}
	return preferences.DefaultView("", s.now())
}

// IsMetricSystem reports whether every unit of the current-or-default record is metric
func (s *PreferencesStore) IsMetricSystem() bool {
	return preferences.Classify(s.CurrentOrDefault()) == preferences.UnitSystemMetric
}

// IsAdvancedLoggingEnabled reads the flag from the current-or-default record
func (s *PreferencesStore) IsAdvancedLoggingEnabled() bool {
	return s.CurrentOrDefault().AdvancedLoggingEnabled
}

// SetService swaps the backing service. Intended for tests.
func (s *PreferencesStore) SetService(service preferences.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.service = service
}

// Reset returns the store to its uninitialized state, waiting for any running action
func (s *PreferencesStore) Reset() {
	defer s.notify()
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	s.transition(func(st *State) {
		*st = State{}
	})
}

func (s *PreferencesStore) run(
	ctx context.Context,
	action, userID, failureMsg string,
	clearOnFailure bool,
	call func(preferences.Service) (*preferences.PreferenceSet, error),
) (State, error) {
	// Deferred first so it runs after actionMu is released
	defer s.notify()
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	s.mu.RLock()
	svc := s.service
	s.mu.RUnlock()

	s.transition(func(st *State) {
		st.IsLoading = true
		st.Error = ""
	})

	result, err := call(svc)

	if err != nil {
		s.logger.Error(ctx).
			Err(err).
			Str("action", action).
			Str("user_id", userID).
			Msg(failureMsg)
	}

	return s.transition(func(st *State) {
		if err != nil {
			st.Error = failureMsg
			if clearOnFailure {
				st.Preferences = nil
			}
		} else {
			st.Preferences = clone(result)
			st.Error = ""
		}
		st.IsLoading = false
		st.IsInitialized = true
	}), err
}

// transition mutates the state under the lock and queues a notification.
// Callers hold actionMu, which keeps the queue in transition order.
func (s *PreferencesStore) transition(mutate func(*State)) State {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.snapshotLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if len(listeners) > 0 {
		s.notifyMu.Lock()
		s.pending = append(s.pending, notification{state: snapshot, listeners: listeners})
		s.notifyMu.Unlock()
	}

	return snapshot
}

// notify drains queued notifications. One goroutine drains at a time; a call
// made during another drain leaves its notifications to that drain.
func (s *PreferencesStore) notify() {
	s.notifyMu.Lock()
	if s.draining {
		s.notifyMu.Unlock()
		return
	}
	s.draining = true

	for len(s.pending) > 0 {
		n := s.pending[0]
		s.pending = s.pending[1:]
		s.notifyMu.Unlock()

		for _, fn := range n.listeners {
			st := n.state
			st.Preferences = clone(st.Preferences)
			fn(st)
		}

		s.notifyMu.Lock()
	}

	s.draining = false
	s.notifyMu.Unlock()
}

func (s *PreferencesStore) snapshotLocked() State {
	st := s.state
	st.Preferences = clone(st.Preferences)
	return st
}

func clone(p *preferences.PreferenceSet) *preferences.PreferenceSet {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
