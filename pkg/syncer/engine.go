// Package syncer reconciles in-memory credential pools with the
// backing store, in both directions: local usage mutations are pushed
// down, and keys provisioned out of band are pulled up.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"arclight-hq/relay/pkg/credential"
	"arclight-hq/relay/pkg/providers"
)

const (
	// DefaultInterval is the normal sync cadence.
	DefaultInterval = 5 * time.Minute

	// DefaultForceInterval is the ceiling after which a sync runs even
	// without request activity.
	DefaultForceInterval = 8 * time.Hour
)

// Store is the credential persistence the engine reconciles against.
type Store interface {
	GetAllAuth(ctx context.Context) ([]credential.Record, error)
	UpdateAuth(ctx context.Context, recs []credential.Record) (int64, error)
}

// Config configures the sync engine.
type Config struct {
	Registry *providers.Registry
	Store    Store

	// Interval overrides DefaultInterval when non-zero.
	Interval time.Duration

	// ForceInterval overrides DefaultForceInterval when non-zero.
	ForceInterval time.Duration

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Engine runs the periodic reconciliation loop.
type Engine struct {
	registry *providers.Registry
	store    Store
	interval time.Duration
	force    time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastSync time.Time
}

// New creates a sync engine. The last-sync stamp starts at "now" so the
// force ceiling counts from process start.
func New(cfg Config) *Engine {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	force := cfg.ForceInterval
	if force <= 0 {
		force = DefaultForceInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: cfg.Registry,
		store:    cfg.Store,
		interval: interval,
		force:    force,
		logger:   logger.With("component", "syncer"),
		lastSync: time.Now(),
	}
}

// Run loops until the context is cancelled, syncing on each tick that
// passes the activity check. A failed cycle is logged and retried on
// the next tick; it never terminates the loop.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.shouldSync(time.Now()) {
				continue
			}
			if err := e.Sync(ctx); err != nil {
				e.logger.Error("sync cycle failed", "error", err)
			}
		}
	}
}

// shouldSync applies the cadence rules: past the force ceiling, sync
// unconditionally; past the normal interval, sync only when some key
// was used within that interval (otherwise nothing changed and the
// round trip is saved).
func (e *Engine) shouldSync(now time.Time) bool {
	e.mu.Lock()
	elapsed := now.Sub(e.lastSync)
	e.mu.Unlock()

	if elapsed >= e.force {
		return true
	}
	if elapsed < e.interval {
		return false
	}

	var newest time.Time
	for _, p := range e.registry.All() {
		if at := p.Pool().MostRecentUse(); at.After(newest) {
			newest = at
		}
	}
	return !newest.IsZero() && now.Sub(newest) <= e.interval
}

// Sync pushes every pool's state to the store, then pulls the store
// back and appends any record provisioned out of band. A store failure
// aborts the attempt with in-memory state untouched; the operation is
// idempotent and safe to retry.
func (e *Engine) Sync(ctx context.Context) error {
	snapshot := make([]credential.Record, 0)
	for _, p := range e.registry.All() {
		snapshot = append(snapshot, p.Pool().Snapshot()...)
	}

	if len(snapshot) > 0 {
		updated, err := e.store.UpdateAuth(ctx, snapshot)
		if err != nil {
			return fmt.Errorf("failed to push credential state: %w", err)
		}
		e.logger.Info("credential state pushed", "rows", updated)
	}

	stored, err := e.store.GetAllAuth(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch credential rows: %w", err)
	}

	known := make(map[int64]struct{}, len(snapshot))
	for _, rec := range snapshot {
		known[rec.ID] = struct{}{}
	}

	var pulled int
	for _, rec := range stored {
		if _, ok := known[rec.ID]; ok {
			continue
		}
		if e.appendToProvider(rec) {
			pulled++
		}
	}
	if pulled > 0 {
		e.logger.Info("new credentials pulled from store", "count", pulled)
	}

	e.mu.Lock()
	e.lastSync = time.Now()
	e.mu.Unlock()
	return nil
}

// Materialize loads every credential row into its provider's pool.
// Called once at startup, before traffic is served.
func (e *Engine) Materialize(ctx context.Context) error {
	stored, err := e.store.GetAllAuth(ctx)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	var loaded int
	for _, rec := range stored {
		if e.appendToProvider(rec) {
			loaded++
		}
	}
	e.logger.Info("credentials initialized", "count", loaded)
	return nil
}

// Pull clears every pool and re-materializes from the store. This is
// the heavy-handed admin path for picking up store-side edits and
// deletions immediately.
func (e *Engine) Pull(ctx context.Context) error {
	stored, err := e.store.GetAllAuth(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch credential rows: %w", err)
	}

	for _, p := range e.registry.All() {
		p.Pool().Clear()
	}

	var loaded int
	for _, rec := range stored {
		if e.appendToProvider(rec) {
			loaded++
		}
	}
	e.logger.Info("credentials pulled", "count", loaded)
	return nil
}

func (e *Engine) appendToProvider(rec credential.Record) bool {
	p, ok := e.registry.Get(rec.Provider)
	if !ok {
		e.logger.Warn("credential references unknown provider",
			"key_id", rec.ID,
			"provider", rec.Provider,
		)
		return false
	}
	return p.Pool().Append(rec)
}
