package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"arclight-hq/relay/pkg/gateway/middleware"
	"arclight-hq/relay/pkg/gateway/types"
)

// SyncEngine is the slice of the credential sync engine the admin
// endpoints drive.
type SyncEngine interface {
	// Sync pushes in-memory credential state to the store and folds
	// back rows added out of band.
	Sync(ctx context.Context) error

	// Pull discards in-memory credential state and reloads it from
	// the store.
	Pull(ctx context.Context) error
}

// Admin serves the operator endpoints: forcing a credential sync,
// pulling store state into memory and toggling chat body logging.
type Admin struct {
	syncer   SyncEngine
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewAdmin builds the admin handler set.
func NewAdmin(syncer SyncEngine, pipeline *Pipeline, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{syncer: syncer, pipeline: pipeline, logger: logger}
}

// HandleSync serves POST /auths: an immediate store sync outside the
// engine's cadence.
func (a *Admin) HandleSync(w http.ResponseWriter, r *http.Request) {
	if err := a.syncer.Sync(r.Context()); err != nil {
		a.logger.ErrorContext(r.Context(), "forced sync failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		types.WriteError(w, types.NewServerError("Credential sync failed."))
		return
	}
	writeJSON(w, map[string]string{"status": "synced"})
}

// HandlePull serves PUT /auths: replace in-memory credentials with
// the store's current rows.
func (a *Admin) HandlePull(w http.ResponseWriter, r *http.Request) {
	if err := a.syncer.Pull(r.Context()); err != nil {
		a.logger.ErrorContext(r.Context(), "credential pull failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		types.WriteError(w, types.NewServerError("Credential pull failed."))
		return
	}
	writeJSON(w, map[string]string{"status": "pulled"})
}

// HandleShowChat serves POST /show_chat: flip chat body logging and
// report the new state.
func (a *Admin) HandleShowChat(w http.ResponseWriter, r *http.Request) {
	enabled := !a.pipeline.ShowChat()
	a.pipeline.SetShowChat(enabled)
	a.logger.InfoContext(r.Context(), "chat body logging toggled",
		"enabled", enabled,
		"request_id", middleware.GetRequestID(r.Context()),
	)
	writeJSON(w, map[string]bool{"show_chat": enabled})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
