package handlers

import (
	"context"
	"net/http"
	"time"
)

const (
	healthStatusHealthy = "healthy"
	healthStatusOK      = "ok"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthzHandler handles liveness probes (/healthz)
// Returns 200 if the application is running
func (h *Handler) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
}

// readyzHandler handles readiness probes (/readyz)
// Checks database and cache connectivity when they are configured
func (h *Handler) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if db := h.container.DB(); db != nil {
		if err := db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["database"] = healthStatusHealthy
		}
	}

	if cache := h.container.Cache(); cache != nil {
		if err := cache.Health(ctx); err != nil {
			checks["cache"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["cache"] = healthStatusHealthy
		}
	}

	response := HealthResponse{
		Status: healthStatusOK,
		Checks: checks,
	}

	status := http.StatusOK
	if !allHealthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}
