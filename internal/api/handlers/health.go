package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-pkgz/lgr"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	logger lgr.L
	check  func() error
}

// NewHealthHandler creates a health handler. check reports the backing
// store's health (e.g. database connectivity); a nil check always
// reports healthy.
func NewHealthHandler(logger lgr.L, check func() error) *HealthHandler {
	return &HealthHandler{logger: logger, check: check}
}

// HandleHealth returns the service's health status.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.check != nil {
		if err := h.check(); err != nil {
			h.logger.Logf("ERROR health check failed: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
