// Package handlers terminates inbound webhook HTTP traffic and maps
// validation results onto status codes. It never interprets payload
// semantics; bodies pass through as opaque blobs.
package handlers

import (
	"encoding/json"
	"net/http"

	"webhook-gatekeeper/internal/common/logging"
	"webhook-gatekeeper/internal/metrics"
	"webhook-gatekeeper/internal/webhook"
)

// Handlers carries the shared dependencies for all HTTP endpoints.
type Handlers struct {
	registry *webhook.Registry
	metrics  *metrics.Metrics
	logger   logging.Logger
}

// New creates the handler set.
func New(registry *webhook.Registry, m *metrics.Metrics, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Handlers{
		registry: registry,
		metrics:  m,
		logger:   logger,
	}
}

// HealthCheck reports service liveness and the configured providers.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"providers": h.registry.Providers(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
