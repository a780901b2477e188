package credential

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

func newTestPool(t *testing.T, recs ...Record) *Pool {
	t.Helper()
	p := NewPool(PoolConfig{Provider: "testing"})
	for _, rec := range recs {
		if !p.Append(rec) {
			t.Fatalf("failed to append record %d", rec.ID)
		}
	}
	return p
}

func TestPick_LRUFairness(t *testing.T) {
	base := time.Now().UTC()
	p := newTestPool(t,
		Record{ID: 1, Valid: true, UsedAt: base.Add(-3 * time.Hour)},
		Record{ID: 2, Valid: true, UsedAt: base.Add(-2 * time.Hour)},
		Record{ID: 3, Valid: true, UsedAt: base.Add(-1 * time.Hour)},
	)

	// Repeated picks with outcome feedback must cycle through every key
	// before repeating any of them.
	seen := make(map[int64]int)
	for i := 0; i < 3; i++ {
		e := p.Pick()
		if e == nil {
			t.Fatalf("pick %d returned nil", i)
		}
		id := e.ID()
		if seen[id] > 0 {
			t.Fatalf("key %d picked twice before others were picked once", id)
		}
		seen[id]++
		p.RecordOutcome(e, http.StatusOK)
	}
	if len(seen) != 3 {
		t.Fatalf("expected all 3 keys picked, got %d", len(seen))
	}
}

func TestPick_OldestFirst(t *testing.T) {
	base := time.Now().UTC()
	p := newTestPool(t,
		Record{ID: 1, Valid: true, UsedAt: base},
		Record{ID: 2, Valid: true, UsedAt: base.Add(-time.Hour)},
	)

	e := p.Pick()
	if e == nil || e.ID() != 2 {
		t.Fatalf("expected oldest-used key 2, got %v", e)
	}
}

func TestPick_QuotaInvariant(t *testing.T) {
	p := newTestPool(t, Record{ID: 1, Valid: true, Max: 2})

	for i := 0; i < 2; i++ {
		e := p.Pick()
		if e == nil {
			t.Fatalf("pick %d returned nil before quota exhausted", i)
		}
		p.RecordOutcome(e, http.StatusOK)
	}

	if e := p.Pick(); e != nil {
		t.Fatalf("expected no pick at quota, got key %d", e.ID())
	}

	p.ResetQuota()
	if e := p.Pick(); e == nil {
		t.Fatal("expected pick to resume after quota reset")
	}
}

func TestPick_UnlimitedQuota(t *testing.T) {
	p := newTestPool(t, Record{ID: 1, Valid: true, Max: 0, Sent: 10000})
	if e := p.Pick(); e == nil {
		t.Fatal("max=0 key must always be pickable")
	}
}

func TestRecordOutcome_UnauthorizedIsPermanent(t *testing.T) {
	p := newTestPool(t, Record{ID: 1, Valid: true})

	e := p.Pick()
	p.RecordOutcome(e, http.StatusUnauthorized)

	if rec := e.Snapshot(); rec.Valid {
		t.Fatal("expected key to be invalid after 401")
	}
	if e := p.Pick(); e != nil {
		t.Fatal("invalid key must not be picked")
	}

	// A quota reset does not resurrect an invalidated key.
	p.ResetQuota()
	if e := p.Pick(); e != nil {
		t.Fatal("invalid key must stay unpickable after quota reset")
	}
}

func TestRecordOutcome_CooldownSchedulesClear(t *testing.T) {
	p := NewPool(PoolConfig{Provider: "testing", CooldownWindow: 30 * time.Millisecond})
	p.Append(Record{ID: 1, Valid: true})

	e := p.Pick()
	p.RecordOutcome(e, http.StatusTooManyRequests)

	if rec := e.Snapshot(); !rec.Cooldown {
		t.Fatal("expected cooldown flag set immediately after 429")
	}

	// Cooldown is advisory: the key remains pickable while flagged.
	if got := p.Pick(); got == nil {
		t.Fatal("cooling-down key should still be pickable")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !e.Snapshot().Cooldown {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("cooldown flag was not cleared after the window elapsed")
}

func TestRecordOutcome_OtherStatusOnlyStampsUse(t *testing.T) {
	p := newTestPool(t, Record{ID: 1, Valid: true})
	e := p.Pick()
	before := e.Snapshot()

	p.RecordOutcome(e, http.StatusBadGateway)

	after := e.Snapshot()
	if !after.UsedAt.After(before.UsedAt) {
		t.Fatal("UsedAt must be stamped on every outcome")
	}
	if after.Sent != before.Sent || after.Valid != before.Valid || after.Cooldown != before.Cooldown {
		t.Fatal("non-200/401/429 statuses must not mutate state")
	}
}

func TestRecordOutcome_NilEntry(t *testing.T) {
	p := newTestPool(t)
	// Must not panic when the request carried its own credentials.
	p.RecordOutcome(nil, http.StatusOK)
}

func TestRecordOutcome_WriteBehindHook(t *testing.T) {
	updates := make(chan Record, 1)
	p := NewPool(PoolConfig{Provider: "testing", OnUpdate: func(r Record) { updates <- r }})
	p.Append(Record{ID: 7, Valid: true})

	p.RecordOutcome(p.Pick(), http.StatusOK)

	select {
	case rec := <-updates:
		if rec.ID != 7 || rec.Sent != 1 {
			t.Fatalf("unexpected write-behind snapshot: %+v", rec)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("write-behind hook was not invoked")
	}
}

func TestApply_CallerAuthWins(t *testing.T) {
	p := newTestPool(t, Record{ID: 1, Valid: true, APIKey: "sk-pool"})

	h := http.Header{}
	h.Set("Authorization", "Bearer caller-supplied")

	if e := p.Apply(h); e != nil {
		t.Fatal("pool must not override caller-supplied auth")
	}
	if got := h.Get("Authorization"); got != "Bearer caller-supplied" {
		t.Fatalf("caller auth was overwritten: %q", got)
	}
}

func TestApply_InjectsBearer(t *testing.T) {
	p := newTestPool(t, Record{ID: 1, Valid: true, APIKey: "sk-pool"})

	h := http.Header{}
	e := p.Apply(h)
	if e == nil {
		t.Fatal("expected a picked entry")
	}
	if got := h.Get("Authorization"); got != "Bearer sk-pool" {
		t.Fatalf("unexpected injected header: %q", got)
	}
}

func TestApply_EmptyPoolProceedsWithoutAuth(t *testing.T) {
	p := newTestPool(t)

	h := http.Header{}
	if e := p.Apply(h); e != nil {
		t.Fatal("empty pool must return nil")
	}
	if h.Get("Authorization") != "" {
		t.Fatal("no header must be injected when nothing was picked")
	}
}

func TestScenario_SingleKeyQuotaOfOne(t *testing.T) {
	p := newTestPool(t, Record{ID: 1, Valid: true, Max: 1})

	e := p.Pick()
	if e == nil || e.ID() != 1 {
		t.Fatalf("expected key 1, got %v", e)
	}
	p.RecordOutcome(e, http.StatusOK)
	if rec := e.Snapshot(); rec.Sent != 1 {
		t.Fatalf("expected sent=1, got %d", rec.Sent)
	}
	if p.Pick() != nil {
		t.Fatal("expected no pick once sent == max")
	}
}

func TestAppend_DuplicateID(t *testing.T) {
	p := newTestPool(t, Record{ID: 1, Valid: true})
	if p.Append(Record{ID: 1, Valid: true}) {
		t.Fatal("duplicate ID must not be appended")
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", p.Len())
	}
}

func TestPool_ConcurrentPickAndOutcome(t *testing.T) {
	p := newTestPool(t,
		Record{ID: 1, Valid: true},
		Record{ID: 2, Valid: true},
		Record{ID: 3, Valid: true},
	)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if e := p.Pick(); e != nil {
					p.RecordOutcome(e, http.StatusOK)
				}
			}
		}()
	}
	wg.Wait()

	var total int64
	for _, rec := range p.Snapshot() {
		total += rec.Sent
	}
	if total != 16*100 {
		t.Fatalf("lost updates: expected %d sends recorded, got %d", 16*100, total)
	}
}
