package implementations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"unit-preferences/internal/domain/preferences"
	"unit-preferences/internal/observability"
	"unit-preferences/internal/platform/cache"
)

// PreferencesCache is the part of the Redis client the service relies on
type PreferencesCache interface {
	Get(ctx context.Context, key string, result interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PreferencesServiceImpl implements the preferences.Service interface
type PreferencesServiceImpl struct {
	repo   preferences.Repository
	cache  PreferencesCache // can be nil
	logger *observability.Logger
	now    func() time.Time

	// fillMu orders cache fills against invalidations. generation counts
	// invalidations; a fill whose read started before one is dropped.
	fillMu     sync.Mutex
	generation uint64

	// Observability
	tracer           trace.Tracer
	readCounter      metric.Int64Counter
	writeCounter     metric.Int64Counter
	cacheHitCounter  metric.Int64Counter
	cacheMissCounter metric.Int64Counter
}

var _ preferences.Service = (*PreferencesServiceImpl)(nil)

// NewPreferencesService creates a new preferences service implementation.
// Pass a nil cache to read straight from the repository.
func NewPreferencesService(
	repo preferences.Repository,
	cache PreferencesCache,
	logger *observability.Logger,
) *PreferencesServiceImpl {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	tracer := otel.Tracer("unit-preferences/service/preferences")
	meter := otel.Meter("unit-preferences/service/preferences")

	// Create metrics (ignore errors for graceful degradation)
	readCounter, err := meter.Int64Counter(
		"preferences.read.total",
		metric.WithDescription("Total number of preferences read operations"),
		metric.WithUnit("{read}"),
	)
	if err != nil {
		readCounter = nil
	}

	writeCounter, err := meter.Int64Counter(
		"preferences.write.total",
		metric.WithDescription("Total number of preferences write operations"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		writeCounter = nil
	}

	cacheHitCounter, err := meter.Int64Counter(
		"preferences.cache.hits",
		metric.WithDescription("Number of preferences cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		cacheHitCounter = nil
	}

	cacheMissCounter, err := meter.Int64Counter(
		"preferences.cache.misses",
		metric.WithDescription("Number of preferences cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		cacheMissCounter = nil
	}

	return &PreferencesServiceImpl{
		repo:             repo,
		cache:            cache,
		logger:           logger,
		now:              time.Now,
		tracer:           tracer,
		readCounter:      readCounter,
		writeCounter:     writeCounter,
		cacheHitCounter:  cacheHitCounter,
		cacheMissCounter: cacheMissCounter,
	}
}

// GetPreferences returns the stored record, or an unpersisted default when there is none
func (s *PreferencesServiceImpl) GetPreferences(ctx context.Context, userID string) (*preferences.PreferenceSet, error) {
	ctx, span := s.tracer.Start(ctx, "GetPreferences",
		trace.WithAttributes(attribute.String("preferences.user_id", userID)),
	)
	defer span.End()

	if _, err := preferences.CreateDefault(userID); err != nil {
		span.SetStatus(codes.Error, "invalid user id")
		return nil, err
	}

	if cached := s.tryGetFromCache(ctx, span, userID); cached != nil {
		s.recordReadMetric(ctx, "cache")
		span.SetStatus(codes.Ok, "")
		return cached, nil
	}

	generation := s.currentGeneration()

	span.AddEvent("querying_database")
	result, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error(ctx).Err(err).Str("user_id", userID).Msg("Failed to load preferences")
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get preferences")
		return nil, preferences.ErrGetPreferences
	}

	if result == nil {
		span.AddEvent("preferences_not_found_returning_default")
		view := preferences.DefaultView(userID, s.now())
		s.recordReadMetric(ctx, "default")
		span.SetStatus(codes.Ok, "")
		return &view, nil
	}

	s.cachePreferences(ctx, span, result, generation)

	s.recordReadMetric(ctx, "database")
	span.SetAttributes(attribute.String("preferences.id", result.ID))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// CreatePreferences stores the onboarding choices; calling it again overwrites them
func (s *PreferencesServiceImpl) CreatePreferences(ctx context.Context, userID string, data preferences.OnboardingData) (*preferences.PreferenceSet, error) {
	ctx, span := s.tracer.Start(ctx, "CreatePreferences",
		trace.WithAttributes(attribute.String("preferences.user_id", userID)),
	)
	defer span.End()

	update := data.Update()
	if err := update.Validate(); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	defaults, err := preferences.CreateDefault(userID)
	if err != nil {
		span.SetStatus(codes.Error, "invalid user id")
		return nil, err
	}

	// Advanced logging is never switched on during onboarding
	record := defaults.Apply(update)
	record.AdvancedLoggingEnabled = false

	span.AddEvent("upserting_to_database")
	result, err := s.repo.UpsertByUser(ctx, userID, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create preferences")
		return nil, fmt.Errorf("failed to create preferences: %w", err)
	}

	s.invalidateCache(ctx, span, userID)

	s.recordWriteMetric(ctx, "create")
	span.SetAttributes(attribute.String("preferences.id", result.ID))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// UpdatePreferences applies a partial update, creating the record from defaults if needed
func (s *PreferencesServiceImpl) UpdatePreferences(ctx context.Context, userID string, update preferences.PreferencesUpdate) (*preferences.PreferenceSet, error) {
	ctx, span := s.tracer.Start(ctx, "UpdatePreferences",
		trace.WithAttributes(attribute.String("preferences.user_id", userID)),
	)
	defer span.End()

	if err := update.Validate(); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	defaults, err := preferences.CreateDefault(userID)
	if err != nil {
		span.SetStatus(codes.Error, "invalid user id")
		return nil, err
	}

	span.AddEvent("fetching_current_preferences")
	existing, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get current preferences")
		return nil, fmt.Errorf("failed to get current preferences: %w", err)
	}

	var result *preferences.PreferenceSet
	if existing != nil {
		result, err = s.updateExisting(ctx, span, existing.ID, update)
	} else {
		span.AddEvent("creating_from_defaults")
		result, err = s.repo.UpsertByUser(ctx, userID, defaults.Apply(update))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update preferences")
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}

	s.invalidateCache(ctx, span, userID)

	s.recordWriteMetric(ctx, "update")
	span.SetAttributes(attribute.String("preferences.id", result.ID))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// updateExisting writes the update then reads the record back, since Update returns nothing
func (s *PreferencesServiceImpl) updateExisting(ctx context.Context, span trace.Span, id string, update preferences.PreferencesUpdate) (*preferences.PreferenceSet, error) {
	span.AddEvent("updating_database")
	if err := s.repo.Update(ctx, id, update); err != nil {
		return nil, err
	}

	span.AddEvent("rereading_updated_record")
	fresh, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		s.logger.Error(ctx).Str("preferences_id", id).Msg("Updated preferences vanished before re-read")
		return nil, preferences.ErrRetrieveUpdated
	}

	return fresh, nil
}

// DeletePreferences removes the user's record
func (s *PreferencesServiceImpl) DeletePreferences(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "DeletePreferences",
		trace.WithAttributes(attribute.String("preferences.user_id", userID)),
	)
	defer span.End()

	existing, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get current preferences")
		return fmt.Errorf("failed to get current preferences: %w", err)
	}

	if existing == nil {
		span.SetStatus(codes.Error, "preferences not found")
		return preferences.ErrNotFound
	}

	span.AddEvent("deleting_from_database")
	if err := s.repo.Delete(ctx, existing.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete preferences")
		return fmt.Errorf("failed to delete preferences: %w", err)
	}

	s.invalidateCache(ctx, span, userID)

	s.recordWriteMetric(ctx, "delete")
	span.SetStatus(codes.Ok, "")
	return nil
}

// CheckAdvancedLogging reads the flag; a missing record reads as disabled
func (s *PreferencesServiceImpl) CheckAdvancedLogging(ctx context.Context, userID string) preferences.FlagResult {
	p, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return preferences.FlagResult{Err: err}
	}
	return preferences.FlagResult{Enabled: p.AdvancedLoggingEnabled}
}

// IsAdvancedLoggingEnabled falls back to false on any failure
func (s *PreferencesServiceImpl) IsAdvancedLoggingEnabled(ctx context.Context, userID string) bool {
	result := s.CheckAdvancedLogging(ctx, userID)
	if result.Err != nil {
		s.logger.Warn(ctx).Err(result.Err).Str("user_id", userID).Msg("Advanced logging check failed, assuming disabled")
	}
	return result.OrDefault(false)
}

// Helper methods

// tryGetFromCache attempts to retrieve preferences from cache.
// Entries are re-validated like stored rows; a bad entry is dropped and read as a miss.
func (s *PreferencesServiceImpl) tryGetFromCache(ctx context.Context, span trace.Span, userID string) *preferences.PreferenceSet {
	if s.cache == nil {
		return nil
	}

	span.AddEvent("checking_cache")

	key := cache.PreferencesKey(userID)
	var cached preferences.PreferenceSet
	err := s.cache.Get(ctx, key, &cached)
	if err == nil && cached.IsPersisted() {
		valid, verr := reconstructCached(cached, userID)
		if verr == nil {
			span.AddEvent("cache_hit")
			s.recordCacheHit(ctx)
			return valid
		}

		s.logger.Warn(ctx).Err(verr).Str("user_id", userID).Msg("Discarding invalid cached preferences")
		span.AddEvent("cache_entry_invalid")
		if derr := s.cache.Delete(ctx, key); derr != nil {
			s.logger.Warn(ctx).Err(derr).Str("user_id", userID).Msg("Preferences cache invalidation failed")
		}
	}

	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn(ctx).Err(err).Str("user_id", userID).Msg("Preferences cache read failed")
	}

	span.AddEvent("cache_miss")
	s.recordCacheMiss(ctx)
	return nil
}

func reconstructCached(cached preferences.PreferenceSet, userID string) (*preferences.PreferenceSet, error) {
	if cached.UserID != userID {
		return nil, fmt.Errorf("cached preferences belong to %q", cached.UserID)
	}
	return preferences.Reconstruct(preferences.RawRecord{
		ID:                     cached.ID,
		UserID:                 cached.UserID,
		BodyWeightUnit:         string(cached.BodyWeightUnit),
		StrengthTrainingUnit:   string(cached.StrengthTrainingUnit),
		BodyMeasurementUnit:    string(cached.BodyMeasurementUnit),
		DistanceUnit:           string(cached.DistanceUnit),
		AdvancedLoggingEnabled: cached.AdvancedLoggingEnabled,
		CreatedAt:              cached.CreatedAt,
		UpdatedAt:              cached.UpdatedAt,
	})
}

// currentGeneration is taken before reading storage
func (s *PreferencesServiceImpl) currentGeneration() uint64 {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	return s.generation
}

// cachePreferences stores a persisted record read at generation; synthesized
// defaults are never cached, and neither is a read that a write has overtaken.
func (s *PreferencesServiceImpl) cachePreferences(ctx context.Context, span trace.Span, p *preferences.PreferenceSet, generation uint64) {
	if s.cache == nil || p == nil || !p.IsPersisted() {
		return
	}

	s.fillMu.Lock()
	defer s.fillMu.Unlock()

	if s.generation != generation {
		span.AddEvent("cache_fill_skipped_stale_read")
		return
	}

	span.AddEvent("caching_preferences")
	// Zero TTL defers to the client's configured CACHE_TTL
	if err := s.cache.Set(ctx, cache.PreferencesKey(p.UserID), p, 0); err != nil {
		// Cache errors are non-critical
		span.AddEvent("cache_set_failed", trace.WithAttributes(
			attribute.String("error", err.Error()),
		))
	}
}

// invalidateCache bumps the generation before deleting, so an in-flight
// fill either lands before the delete or is skipped.
func (s *PreferencesServiceImpl) invalidateCache(ctx context.Context, span trace.Span, userID string) {
	if s.cache == nil {
		return
	}

	s.fillMu.Lock()
	s.generation++
	s.fillMu.Unlock()

	span.AddEvent("invalidating_cache")
	if err := s.cache.Delete(ctx, cache.PreferencesKey(userID)); err != nil {
		// Cache errors are non-critical
		span.AddEvent("cache_delete_failed", trace.WithAttributes(
			attribute.String("error", err.Error()),
		))
		s.logger.Warn(ctx).Err(err).Str("user_id", userID).Msg("Preferences cache invalidation failed")
	}
}

func (s *PreferencesServiceImpl) recordReadMetric(ctx context.Context, source string) {
	if s.readCounter != nil {
		s.readCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String("source", source)),
		)
	}
}

func (s *PreferencesServiceImpl) recordWriteMetric(ctx context.Context, operation string) {
	if s.writeCounter != nil {
		s.writeCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String("operation", operation)),
		)
	}
}

func (s *PreferencesServiceImpl) recordCacheHit(ctx context.Context) {
	if s.cacheHitCounter != nil {
		s.cacheHitCounter.Add(ctx, 1)
	}
}

func (s *PreferencesServiceImpl) recordCacheMiss(ctx context.Context) {
	if s.cacheMissCounter != nil {
		s.cacheMissCounter.Add(ctx, 1)
	}
}
