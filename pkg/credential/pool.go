package credential

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// DefaultCooldownWindow is how long a key stays flagged after a 429.
const DefaultCooldownWindow = 30 * time.Minute

// authorizationHeader is the header the pool injects on outbound requests.
const authorizationHeader = "Authorization"

// PoolConfig configures a credential pool.
type PoolConfig struct {
	// Provider is the canonical lowercase provider name.
	Provider string

	// CooldownWindow overrides DefaultCooldownWindow when non-zero.
	CooldownWindow time.Duration

	// OnUpdate, when set, is invoked asynchronously with a snapshot of a
	// record after an outcome mutates it. Used for store write-behind.
	OnUpdate func(Record)

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Pool owns the set of credential entries for one provider.
//
// The pool lock guards structural operations (the sort-and-scan in Pick,
// appends during sync); each entry carries its own lock for field
// mutation, so a request updating one key does not block unrelated keys.
//
// Cooldown is advisory: a key flagged by a 429 remains selectable. The
// flag exists so operators and the sync engine can observe rate-limit
// pressure, matching how quota windows roll off on the provider side.
type Pool struct {
	provider string
	window   time.Duration
	onUpdate func(Record)
	logger   *slog.Logger

	mu      sync.Mutex
	entries []*Entry
}

// NewPool creates an empty pool for one provider.
func NewPool(cfg PoolConfig) *Pool {
	window := cfg.CooldownWindow
	if window <= 0 {
		window = DefaultCooldownWindow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		provider: cfg.Provider,
		window:   window,
		onUpdate: cfg.OnUpdate,
		logger:   logger.With("component", "credential.pool", "provider", cfg.Provider),
	}
}

// Provider returns the owning provider's canonical name.
func (p *Pool) Provider() string {
	return p.provider
}

// Len returns the number of entries in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Pick selects the least recently used entry that is valid and under
// quota. It returns nil when no entry qualifies. The scan is serialized
// by the pool lock; concurrent Pick calls see a consistent ordering.
func (p *Pool) Pick() *Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	sort.SliceStable(p.entries, func(i, j int) bool {
		return p.entries[i].UsedAt().Before(p.entries[j].UsedAt())
	})

	for _, e := range p.entries {
		if e.pickable() {
			return e
		}
	}
	return nil
}

// Apply injects a picked credential into the outbound headers.
//
// Caller-supplied credentials always win: when the inbound request
// already carries an Authorization header, nothing is picked and nil is
// returned. When the pool has no usable key, the request proceeds
// without auth and the upstream's rejection is relayed as-is.
func (p *Pool) Apply(h http.Header) *Entry {
	if h.Get(authorizationHeader) != "" {
		return nil
	}

	e := p.Pick()
	if e == nil {
		p.logger.Debug("no usable credential, forwarding unauthenticated")
		return nil
	}

	e.mu.Lock()
	h.Set(authorizationHeader, "Bearer "+e.rec.APIKey)
	e.mu.Unlock()
	return e
}

// RecordOutcome folds an upstream HTTP status into the entry's state.
//
// Every call stamps UsedAt. 200 increments the quota counter atomically
// with the stamp; 401 invalidates the key permanently; 429 sets the
// cooldown flag and schedules its clearance after the cooldown window
// without holding any lock while waiting. Other statuses only log.
func (p *Pool) RecordOutcome(e *Entry, status int) {
	if e == nil {
		p.logger.Debug("no credential was applied, nothing to record", "status", status)
		return
	}

	now := time.Now().UTC()
	var startCooldown bool
	e.Update(func(r *Record) {
		r.UsedAt = now
		switch status {
		case http.StatusOK:
			r.Sent++
		case http.StatusUnauthorized:
			r.Valid = false
		case http.StatusTooManyRequests:
			r.Cooldown = true
			startCooldown = true
		}
	})

	rec := e.Snapshot()
	switch status {
	case http.StatusOK:
		p.logger.Debug("key authed", "key_id", rec.ID, "sent", rec.Sent)
	case http.StatusUnauthorized:
		p.logger.Warn("key marked invalid after unauthorized response", "key_id", rec.ID)
	case http.StatusTooManyRequests:
		p.logger.Warn("key rate limited, cooling down", "key_id", rec.ID, "window", p.window)
	default:
		p.logger.Warn("unhandled upstream status for key", "key_id", rec.ID, "status", status)
	}

	if startCooldown {
		time.AfterFunc(p.window, func() {
			e.Update(func(r *Record) { r.Cooldown = false })
			p.logger.Info("key cooldown finished", "key_id", rec.ID)
			if p.onUpdate != nil {
				p.onUpdate(e.Snapshot())
			}
		})
	}

	if p.onUpdate != nil {
		go p.onUpdate(rec)
	}
}

// ResetQuota zeroes the sent counter on every entry. Validity and
// cooldown flags are left untouched.
func (p *Pool) ResetQuota() {
	p.mu.Lock()
	entries := make([]*Entry, len(p.entries))
	copy(entries, p.entries)
	p.mu.Unlock()

	for _, e := range entries {
		e.Update(func(r *Record) { r.Sent = 0 })
	}
	p.logger.Info("quota reset", "keys", len(entries))
}

// Append adds a record unless an entry with the same ID already exists.
// It reports whether the record was added. Sync pulls may race; the ID
// guard keeps a concurrent double-pull from duplicating a key.
func (p *Pool) Append(rec Record) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries {
		if e.ID() == rec.ID {
			return false
		}
	}
	p.entries = append(p.entries, NewEntry(rec))
	return true
}

// Clear drops every entry. Used by the pull path that re-materializes
// the pool from the backing store.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = nil
}

// Snapshot copies the current state of every entry.
func (p *Pool) Snapshot() []Record {
	p.mu.Lock()
	entries := make([]*Entry, len(p.entries))
	copy(entries, p.entries)
	p.mu.Unlock()

	recs := make([]Record, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, e.Snapshot())
	}
	return recs
}

// MostRecentUse returns the newest UsedAt across all entries, or the
// zero time for an empty pool. The sync engine uses it to decide
// whether a tick has any activity worth persisting.
func (p *Pool) MostRecentUse() time.Time {
	p.mu.Lock()
	entries := make([]*Entry, len(p.entries))
	copy(entries, p.entries)
	p.mu.Unlock()

	var newest time.Time
	for _, e := range entries {
		if at := e.UsedAt(); at.After(newest) {
			newest = at
		}
	}
	return newest
}
