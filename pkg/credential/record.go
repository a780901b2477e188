package credential

import (
	"sync"
	"time"
)

// Record is the persisted state of a single provider API key.
// IDs are assigned by the backing store; the gateway never creates
// or deletes records, it only mutates usage and health fields.
type Record struct {
	// ID is the store-assigned identifier.
	ID int64

	// Provider is the canonical lowercase provider name that owns this key.
	Provider string

	// APIKey is the secret. It must never be logged in full.
	APIKey string

	// Sent counts successful requests since the last quota reset.
	Sent int64

	// Max is the quota ceiling. Zero means unlimited.
	Max int64

	// Valid is cleared permanently once the upstream rejects the key.
	Valid bool

	// UsedAt is the time of last use, driving least-recently-used selection.
	UsedAt time.Time

	// Cooldown is set while the key is rate limited. It is advisory and
	// does not exclude the key from selection.
	Cooldown bool

	// Comments holds free-text operational notes. No behavior.
	Comments string
}

// Exhausted reports whether the record has used up its quota.
func (r Record) Exhausted() bool {
	return r.Max != 0 && r.Sent >= r.Max
}

// Entry wraps a Record with its own lock so that concurrent requests
// mutating different keys never contend with each other.
type Entry struct {
	mu  sync.Mutex
	rec Record
}

// NewEntry wraps a record in a freshly lockable entry.
func NewEntry(rec Record) *Entry {
	return &Entry{rec: rec}
}

// ID returns the store-assigned identifier without copying the record.
func (e *Entry) ID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.ID
}

// Snapshot returns a copy of the current record state.
func (e *Entry) Snapshot() Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec
}

// Update applies fn to the record while holding the entry lock.
// fn must not block or acquire other entry locks.
func (e *Entry) Update(fn func(*Record)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.rec)
}

// UsedAt returns the last-use timestamp.
func (e *Entry) UsedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.UsedAt
}

// pickable reports whether the entry may serve a request: the key is
// valid and under quota. Cooldown is deliberately not consulted here;
// a cooling-down key stays selectable (see the pool documentation).
func (e *Entry) pickable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Valid && !e.rec.Exhausted()
}
