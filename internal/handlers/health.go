package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dateloop/backend/internal/logging"
)

const readinessTimeout = 2 * time.Second

// HealthHandler responds with service health information.
type HealthHandler struct {
	// Ready reports whether backing services answer. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status := http.StatusOK
	payload := map[string]string{
		"status": "ok",
	}

	if h.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := h.Ready(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("readiness check failed", "error", err)
			status = http.StatusServiceUnavailable
			payload["status"] = "unavailable"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
