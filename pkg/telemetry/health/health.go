// Package health serves the gateway's liveness endpoint.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds one component check during a health request.
const checkTimeout = 2 * time.Second

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// Handler reports gateway health. The store check is authoritative for
// the overall status; advisory checks (like an empty proxy pool) are
// reported but do not fail the probe.
type Handler struct {
	store    Check
	advisory map[string]Check
}

// NewHandler creates a health handler. store may be nil when the probe
// should only report process liveness.
func NewHandler(store Check) *Handler {
	return &Handler{
		store:    store,
		advisory: make(map[string]Check),
	}
}

// AddAdvisory registers a named check that is reported without
// affecting the overall status.
func (h *Handler) AddAdvisory(name string, check Check) {
	h.advisory[name] = check
}

type response struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := response{Status: "ok", Components: make(map[string]string)}
	code := http.StatusOK

	if h.store != nil {
		if err := h.store(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["store"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			resp.Components["store"] = "ok"
		}
	}

	for name, check := range h.advisory {
		if err := check(ctx); err != nil {
			resp.Components[name] = err.Error()
		} else {
			resp.Components[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
