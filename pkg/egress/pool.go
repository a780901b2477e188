package egress

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// DefaultRefreshDebounce is the minimum gap between refreshes triggered
// from the request hot path.
const DefaultRefreshDebounce = 5 * time.Minute

// refreshTimeout bounds a background refresh spawned off a request.
const refreshTimeout = 2 * time.Minute

// Fetcher lists egress endpoints from a remote proxy provider.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Endpoint, error)
}

// Store persists the last-known pool snapshot.
type Store interface {
	SaveProxies(ctx context.Context, endpoints []Endpoint) error
	LoadProxies(ctx context.Context) ([]Endpoint, error)
}

// PoolConfig configures an egress pool.
type PoolConfig struct {
	// Fetcher pulls fresh endpoints from the proxy-list provider.
	Fetcher Fetcher

	// Store persists snapshots. Optional; nil disables persistence.
	Store Store

	// Debounce overrides DefaultRefreshDebounce when non-zero.
	Debounce time.Duration

	// Rand is the selection source. Defaults to a time-seeded source.
	Rand *rand.Rand

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Pool owns the set of egress endpoints.
//
// One lock covers the whole collection: refresh replaces the snapshot
// atomically, eviction removes single entries, and Pick reads under the
// same lock. Refresh and eviction are rare relative to Pick, so the
// coarse lock does not contend in practice.
type Pool struct {
	fetcher  Fetcher
	store    Store
	debounce time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	endpoints []Endpoint

	rngMu sync.Mutex
	rng   *rand.Rand

	refreshMu   sync.Mutex
	lastRefresh time.Time
}

// NewPool creates an empty egress pool.
func NewPool(cfg PoolConfig) *Pool {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultRefreshDebounce
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		fetcher:  cfg.Fetcher,
		store:    cfg.Store,
		debounce: debounce,
		rng:      rng,
		logger:   logger.With("component", "egress.pool"),
	}
}

// Len returns the current pool size.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Load primes the pool at startup: the last-known snapshot is read from
// the store, and the remote API is consulted only when the store holds
// nothing.
func (p *Pool) Load(ctx context.Context) error {
	if p.store != nil {
		saved, err := p.store.LoadProxies(ctx)
		if err != nil {
			return err
		}
		if len(saved) > 0 {
			p.replace(saved)
			p.markRefreshed()
			p.logger.Info("egress pool loaded from store", "endpoints", len(saved))
			return nil
		}
	}
	return p.Refresh(ctx)
}

// Refresh fetches the full endpoint list from the proxy provider,
// replaces the pool contents atomically, and persists the snapshot.
// The delete-all/insert persistence is not transactional with the
// in-memory swap; the debounce keeps this path single-flight.
func (p *Pool) Refresh(ctx context.Context) error {
	fresh, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	p.replace(fresh)
	p.markRefreshed()
	p.logger.Info("egress pool refreshed", "endpoints", len(fresh))

	if p.store != nil {
		if err := p.store.SaveProxies(ctx, fresh); err != nil {
			p.logger.Error("failed to persist egress snapshot", "error", err)
		}
	}
	return nil
}

// DebouncedRefresh triggers a refresh in the background unless one ran
// within the debounce window. It never blocks the caller; the request
// that triggered it proceeds with the current pool.
func (p *Pool) DebouncedRefresh() {
	go func() {
		p.refreshMu.Lock()
		defer p.refreshMu.Unlock()

		if time.Since(p.lastRefresh) < p.debounce {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		if err := p.refreshLocked(ctx); err != nil {
			p.logger.Error("debounced refresh failed", "error", err)
		}
	}()
}

// refreshLocked is Refresh minus the lastRefresh bookkeeping, which the
// caller already holds refreshMu for.
func (p *Pool) refreshLocked(ctx context.Context) error {
	fresh, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	p.replace(fresh)
	p.lastRefresh = time.Now()
	p.logger.Info("egress pool refreshed", "endpoints", len(fresh))

	if p.store != nil {
		if err := p.store.SaveProxies(ctx, fresh); err != nil {
			p.logger.Error("failed to persist egress snapshot", "error", err)
		}
	}
	return nil
}

// Pick selects an endpoint uniformly at random. The second return is
// false when the pool is empty; callers must treat that as "no proxied
// egress available", not fall back to direct.
func (p *Pool) Pick() (Endpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.endpoints) == 0 {
		return Endpoint{}, false
	}

	p.rngMu.Lock()
	i := p.rng.Intn(len(p.endpoints))
	p.rngMu.Unlock()

	return p.endpoints[i], true
}

// Evict removes the first endpoint with the given address. It reports
// whether anything was removed. Evicted endpoints only come back with
// the next full refresh.
func (p *Pool) Evict(address string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, ep := range p.endpoints {
		if ep.Address == address {
			p.endpoints = append(p.endpoints[:i], p.endpoints[i+1:]...)
			p.logger.Info("egress endpoint evicted", "endpoint", ep.Redacted(), "remaining", len(p.endpoints))
			return true
		}
	}
	return false
}

// Snapshot copies the current endpoint list.
func (p *Pool) Snapshot() []Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Endpoint, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}

func (p *Pool) replace(endpoints []Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints = endpoints
}

func (p *Pool) markRefreshed() {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	p.lastRefresh = time.Now()
}
