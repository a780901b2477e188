// Package scheduler resets provider quota counters on their daily
// provider-local clocks.
//
// Two paths trigger a reset: a cron entry per provider with a
// configured clock, and a lazy check run opportunistically from the
// request path for the window where the process was asleep when the
// clock fired. Both funnel into the same idempotent reset.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"arclight-hq/relay/pkg/providers"
)

// storeTimeout bounds the persistence write after an in-memory reset.
const storeTimeout = 30 * time.Second

// Store persists quota resets for a provider's rows.
type Store interface {
	ResetProviderSent(ctx context.Context, provider string) (int64, error)
}

// Config configures the scheduler.
type Config struct {
	Registry *providers.Registry
	Store    Store

	// Now overrides the clock source, for tests.
	Now func() time.Time

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Scheduler owns the per-provider reset cron and the lazy-reset
// bookkeeping.
type Scheduler struct {
	registry *providers.Registry
	store    Store
	cron     *cron.Cron
	now      func() time.Time
	logger   *slog.Logger

	mu        sync.Mutex
	lastReset map[string]time.Time
}

// New creates a scheduler. Providers without a reset clock are ignored.
func New(cfg Config) *Scheduler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		registry:  cfg.Registry,
		store:     cfg.Store,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		now:       now,
		logger:    logger.With("component", "scheduler"),
		lastReset: make(map[string]time.Time),
	}

	// Bookkeeping starts at process start: a clock that already fired
	// earlier today does not retroactively reset freshly loaded state.
	startedAt := now().UTC()
	for _, p := range cfg.Registry.All() {
		if _, ok := p.ResetClock(); ok {
			s.lastReset[p.Name()] = startedAt
		}
	}
	return s
}

// Start registers one cron entry per provider with a reset clock and
// starts the cron loop. The entries run until Stop.
func (s *Scheduler) Start() error {
	for _, p := range s.registry.All() {
		clock, ok := p.ResetClock()
		if !ok {
			continue
		}

		p := p
		spec := fmt.Sprintf("%d %d * * *", clock.Minute, clock.Hour)
		if _, err := s.cron.AddFunc(spec, func() { s.fire(p) }); err != nil {
			return fmt.Errorf("failed to schedule reset for %q: %w", p.Name(), err)
		}
		s.logger.Info("quota reset scheduled",
			"provider", p.Name(),
			"clock_utc", fmt.Sprintf("%02d:%02d", clock.Hour, clock.Minute),
		)
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop. In-flight resets finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// MaybeReset runs the lazy reset path for one provider: when the
// provider's clock has passed today and no reset has been recorded
// since that occurrence, fire the reset once. Safe for concurrent
// callers; the check-then-set under the mutex guarantees a single
// firing per occurrence, and the reset itself is idempotent anyway.
func (s *Scheduler) MaybeReset(name string) {
	p, ok := s.registry.Get(name)
	if !ok {
		return
	}
	clock, ok := p.ResetClock()
	if !ok {
		return
	}

	now := s.now().UTC()
	occurrence := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour, clock.Minute, 0, 0, time.UTC)
	if now.Before(occurrence) {
		return
	}

	s.mu.Lock()
	if !s.lastReset[name].Before(occurrence) {
		s.mu.Unlock()
		return
	}
	s.lastReset[name] = now
	s.mu.Unlock()

	s.reset(p)
}

// fire is the cron path: reset and stamp the bookkeeping.
func (s *Scheduler) fire(p providers.Provider) {
	s.mu.Lock()
	s.lastReset[p.Name()] = s.now().UTC()
	s.mu.Unlock()

	s.reset(p)
}

// reset zeroes the in-memory counters and pushes the reset to the
// store. A failed store write is logged, not retried: memory has
// already reset and the sync engine reconciles eventually.
func (s *Scheduler) reset(p providers.Provider) {
	p.Pool().ResetQuota()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	rows, err := s.store.ResetProviderSent(ctx, p.Name())
	if err != nil {
		s.logger.Error("failed to persist quota reset",
			"provider", p.Name(),
			"error", err,
		)
		return
	}
	s.logger.Info("quota reset persisted", "provider", p.Name(), "rows", rows)
}
