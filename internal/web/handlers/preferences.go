package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"unit-preferences/internal/domain/preferences"
)

const maxBodySize = 1 << 16

// AdvancedLoggingResponse is returned by GET .../advanced-logging
type AdvancedLoggingResponse struct {
	UserID  string `json:"user_id"`
	Enabled bool   `json:"enabled"`
}

// UnitSystemResponse is returned by GET .../system
type UnitSystemResponse struct {
	UserID     string                 `json:"user_id"`
	UnitSystem preferences.UnitSystem `json:"unit_system"`
}

// getPreferencesHandler returns stored preferences or defaults (GET /api/users/{userID}/preferences)
func (h *Handler) getPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx, span := h.startSpan(r.Context(), "GetPreferencesHandler",
		attribute.String("handler", "get_preferences"),
		attribute.String("preferences.user_id", userID),
	)
	defer span.End()

	result, err := h.container.PreferencesService().GetPreferences(ctx, userID)
	if err != nil {
		h.writeError(ctx, w, span, err, "Failed to get preferences")
		return
	}

	span.SetAttributes(attribute.Bool("preferences.persisted", result.IsPersisted()))
	span.SetStatus(codes.Ok, "")
	writeJSON(w, http.StatusOK, result)
}

// createPreferencesHandler stores onboarding choices (POST /api/users/{userID}/preferences)
func (h *Handler) createPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx, span := h.startSpan(r.Context(), "CreatePreferencesHandler",
		attribute.String("handler", "create_preferences"),
		attribute.String("preferences.user_id", userID),
	)
	defer span.End()

	var data preferences.OnboardingData
	if err := decodeBody(w, r, &data); err != nil {
		h.writeError(ctx, w, span, err, "Failed to decode request body")
		return
	}

	result, err := h.container.PreferencesService().CreatePreferences(ctx, userID, data)
	if err != nil {
		h.writeError(ctx, w, span, err, "Failed to create preferences")
		return
	}

	h.logger.Info(ctx).
		Str("user_id", userID).
		Str("preferences_id", result.ID).
		Msg("Preferences created")

	span.SetStatus(codes.Ok, "")
	writeJSON(w, http.StatusCreated, result)
}

// updatePreferencesHandler applies a partial update (PATCH /api/users/{userID}/preferences)
func (h *Handler) updatePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx, span := h.startSpan(r.Context(), "UpdatePreferencesHandler",
		attribute.String("handler", "update_preferences"),
		attribute.String("preferences.user_id", userID),
	)
	defer span.End()

	var update preferences.PreferencesUpdate
	if err := decodeBody(w, r, &update); err != nil {
		h.writeError(ctx, w, span, err, "Failed to decode request body")
		return
	}

	result, err := h.container.PreferencesService().UpdatePreferences(ctx, userID, update)
	if err != nil {
		h.writeError(ctx, w, span, err, "Failed to update preferences")
		return
	}

	h.logger.Info(ctx).
		Str("user_id", userID).
		Str("preferences_id", result.ID).
		Msg("Preferences updated")

	span.SetStatus(codes.Ok, "")
	writeJSON(w, http.StatusOK, result)
}

// deletePreferencesHandler removes the user's preferences (DELETE /api/users/{userID}/preferences)
func (h *Handler) deletePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx, span := h.startSpan(r.Context(), "DeletePreferencesHandler",
		attribute.String("handler", "delete_preferences"),
		attribute.String("preferences.user_id", userID),
	)
	defer span.End()

	if err := h.container.PreferencesService().DeletePreferences(ctx, userID); err != nil {
		h.writeError(ctx, w, span, err, "Failed to delete preferences")
		return
	}

	h.logger.Info(ctx).Str("user_id", userID).Msg("Preferences deleted")

	span.SetStatus(codes.Ok, "")
	w.WriteHeader(http.StatusNoContent)
}

// advancedLoggingHandler reports the flag; lookup failures read as disabled
func (h *Handler) advancedLoggingHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx, span := h.startSpan(r.Context(), "AdvancedLoggingHandler",
		attribute.String("handler", "advanced_logging"),
		attribute.String("preferences.user_id", userID),
	)
	defer span.End()

	enabled := h.container.PreferencesService().IsAdvancedLoggingEnabled(ctx, userID)

	span.SetAttributes(attribute.Bool("preferences.advanced_logging", enabled))
	span.SetStatus(codes.Ok, "")
	writeJSON(w, http.StatusOK, AdvancedLoggingResponse{UserID: userID, Enabled: enabled})
}

// unitSystemHandler classifies the user's current-or-default units
func (h *Handler) unitSystemHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx, span := h.startSpan(r.Context(), "UnitSystemHandler",
		attribute.String("handler", "unit_system"),
		attribute.String("preferences.user_id", userID),
	)
	defer span.End()

	result, err := h.container.PreferencesService().GetPreferences(ctx, userID)
	if err != nil {
		h.writeError(ctx, w, span, err, "Failed to get preferences")
		return
	}

	system := preferences.Classify(*result)

	span.SetAttributes(attribute.String("preferences.unit_system", string(system)))
	span.SetStatus(codes.Ok, "")
	writeJSON(w, http.StatusOK, UnitSystemResponse{UserID: userID, UnitSystem: system})
}

// decodeBody reads a bounded JSON body, rejecting unknown fields
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", preferences.ErrInvalidPreferences, err)
	}
	return nil
}
