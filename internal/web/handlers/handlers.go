package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"unit-preferences/internal/domain/preferences"
	"unit-preferences/internal/observability"
	"unit-preferences/internal/services"
)

// Handler serves the preferences API and health probes
type Handler struct {
	container *services.Container
	logger    *observability.Logger
	tracer    trace.Tracer
	metrics   *observability.HTTPMetrics // can be nil
}

// NewWithContainer creates a handler backed by the container's services
func NewWithContainer(container *services.Container) *Handler {
	h := &Handler{
		container: container,
		logger:    container.Logger(),
		tracer:    otel.Tracer("unit-preferences/web/handlers"),
	}

	metrics, err := observability.NewHTTPMetrics(observability.GetMeter())
	if err != nil {
		h.logger.Warn(context.Background()).Err(err).Msg("HTTP metrics unavailable")
	} else {
		h.metrics = metrics
	}

	return h
}

// Routes builds the chi router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.TracingMiddleware(observability.GetTracer()))
	if h.metrics != nil {
		r.Use(observability.MetricsMiddleware(h.metrics))
	}

	r.Get("/healthz", h.healthzHandler)
	r.Get("/readyz", h.readyzHandler)

	r.Route("/api/users/{userID}/preferences", func(r chi.Router) {
		r.Get("/", h.getPreferencesHandler)
		r.Post("/", h.createPreferencesHandler)
		r.Patch("/", h.updatePreferencesHandler)
		r.Delete("/", h.deletePreferencesHandler)
		r.Get("/advanced-logging", h.advancedLoggingHandler)
		r.Get("/system", h.unitSystemHandler)
	})

	return r
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors onto HTTP status codes. Storage faults come
// first: a stored row with an unknown unit also wraps ErrInvalidUnit.
func statusFor(err error) int {
	switch {
	case errors.Is(err, preferences.ErrPersistence),
		errors.Is(err, preferences.ErrRetrieveUpdated):
		return http.StatusInternalServerError
	case errors.Is(err, preferences.ErrInvalidPreferences),
		errors.Is(err, preferences.ErrInvalidUnit),
		errors.Is(err, preferences.ErrEmptyUserID):
		return http.StatusBadRequest
	case errors.Is(err, preferences.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, preferences.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // Best effort response
}

// writeError renders err; server errors never expose their cause
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, span trace.Span, err error, logMsg string) {
	status := statusFor(err)

	span.RecordError(err)
	span.SetStatus(codes.Error, logMsg)

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(ctx).Err(err).Msg(logMsg)
		message = http.StatusText(status)
	} else {
		h.logger.Warn(ctx).Err(err).Int("status", status).Msg(logMsg)
	}

	writeJSON(w, status, ErrorResponse{Error: message})
}

func (h *Handler) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return h.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
