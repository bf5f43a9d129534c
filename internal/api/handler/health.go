// Package handler contains the HTTP handlers behind the responder's
// routes.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/remiblancher/ocspkit/internal/api/dto"
)

// ReadyCheck verifies one readiness condition.
type ReadyCheck func(ctx context.Context) error

// HealthHandler answers the health and readiness endpoints.
type HealthHandler struct {
	version string
	checks  map[string]ReadyCheck
}

// NewHealthHandler serves liveness plus the given named readiness
// checks.
func NewHealthHandler(version string, checks map[string]ReadyCheck) *HealthHandler {
	return &HealthHandler{version: version, checks: checks}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok", Version: h.version})
}

// Ready handles GET /ready. Every registered check runs on each call;
// a responder whose index has become unreadable reports not ready.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]bool, len(h.checks))
	ready := true
	for name, check := range h.checks {
		ok := check(r.Context()) == nil
		results[name] = ok
		ready = ready && ok
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, dto.ReadyResponse{Ready: ready, Checks: results})
}

// writeJSON writes body as the JSON response.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// writeError writes an API error as the JSON response.
func writeError(w http.ResponseWriter, status int, apiErr *dto.APIError) {
	writeJSON(w, status, apiErr)
}
