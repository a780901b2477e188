package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"arclight-hq/relay/pkg/credential"
	"arclight-hq/relay/pkg/providers"
)

// countingStore records reset persistence calls.
type countingStore struct {
	resets atomic.Int64
}

func (s *countingStore) ResetProviderSent(ctx context.Context, provider string) (int64, error) {
	s.resets.Add(1)
	return 1, nil
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestScheduler(t *testing.T, startAt time.Time) (*Scheduler, *providers.Registry, *countingStore, *testClock) {
	t.Helper()
	clock := &testClock{now: startAt}
	store := &countingStore{}
	registry := providers.NewRegistry(providers.RegistryConfig{})
	s := New(Config{Registry: registry, Store: store, Now: clock.Now})
	return s, registry, store, clock
}

func useGoogleKey(t *testing.T, registry *providers.Registry, sent int64) *credential.Pool {
	t.Helper()
	p, ok := registry.Get("google")
	if !ok {
		t.Fatal("google provider missing")
	}
	pool := p.Pool()
	pool.Append(credential.Record{ID: 1, Provider: "google", Valid: true, Sent: sent})
	return pool
}

func TestMaybeReset_BeforeClock(t *testing.T) {
	// Process started yesterday evening; google resets at 07:00 UTC.
	start := time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC)
	s, registry, store, clock := newTestScheduler(t, start)
	pool := useGoogleKey(t, registry, 5)

	clock.Set(time.Date(2026, 3, 10, 6, 59, 0, 0, time.UTC))
	s.MaybeReset("google")

	if store.resets.Load() != 0 {
		t.Fatal("no reset may fire before the clock")
	}
	if pool.Snapshot()[0].Sent != 5 {
		t.Fatal("counters must be untouched before the clock")
	}
}

func TestMaybeReset_FiresOnceAfterClock(t *testing.T) {
	start := time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC)
	s, registry, store, clock := newTestScheduler(t, start)
	pool := useGoogleKey(t, registry, 5)

	clock.Set(time.Date(2026, 3, 10, 7, 1, 0, 0, time.UTC))

	// Ten concurrent opportunistic callers: the reset fires exactly once.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.MaybeReset("google")
		}()
	}
	wg.Wait()

	if got := store.resets.Load(); got != 1 {
		t.Fatalf("expected exactly 1 reset, got %d", got)
	}
	if pool.Snapshot()[0].Sent != 0 {
		t.Fatal("sent counter must be zeroed")
	}

	// A later call on the same day does not fire again.
	clock.Set(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	s.MaybeReset("google")
	if got := store.resets.Load(); got != 1 {
		t.Fatalf("reset fired twice in one day: %d", got)
	}
}

func TestMaybeReset_NextDayFiresAgain(t *testing.T) {
	start := time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC)
	s, registry, store, clock := newTestScheduler(t, start)
	useGoogleKey(t, registry, 5)

	clock.Set(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	s.MaybeReset("google")
	clock.Set(time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC))
	s.MaybeReset("google")

	if got := store.resets.Load(); got != 2 {
		t.Fatalf("expected one reset per day, got %d", got)
	}
}

func TestMaybeReset_StartAfterClockDoesNotFire(t *testing.T) {
	// Process started at 07:30, after today's 07:00 occurrence. The
	// bookkeeping starts at process start, so today's reset is treated
	// as already handled and freshly loaded state survives.
	start := time.Date(2026, 3, 10, 7, 30, 0, 0, time.UTC)
	s, registry, store, clock := newTestScheduler(t, start)
	pool := useGoogleKey(t, registry, 5)

	clock.Set(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	s.MaybeReset("google")

	if store.resets.Load() != 0 {
		t.Fatal("reset must not fire for an occurrence before process start")
	}
	if pool.Snapshot()[0].Sent != 5 {
		t.Fatal("loaded counters must survive")
	}
}

func TestMaybeReset_ProviderWithoutClock(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s, registry, store, _ := newTestScheduler(t, start)

	p, _ := registry.Get("deepinfra")
	p.Pool().Append(credential.Record{ID: 2, Provider: "deepinfra", Valid: true, Sent: 3})

	s.MaybeReset("deepinfra")
	s.MaybeReset("unknown-provider")

	if store.resets.Load() != 0 {
		t.Fatal("providers without a clock must never reset")
	}
}

func TestReset_DoesNotTouchHealthFlags(t *testing.T) {
	start := time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC)
	s, registry, _, clock := newTestScheduler(t, start)

	p, _ := registry.Get("google")
	pool := p.Pool()
	pool.Append(credential.Record{ID: 1, Provider: "google", Valid: false, Sent: 4})
	pool.Append(credential.Record{ID: 2, Provider: "google", Valid: true, Cooldown: true, Sent: 9})

	clock.Set(time.Date(2026, 3, 10, 7, 1, 0, 0, time.UTC))
	s.MaybeReset("google")

	for _, rec := range pool.Snapshot() {
		if rec.Sent != 0 {
			t.Fatalf("key %d not reset", rec.ID)
		}
		switch rec.ID {
		case 1:
			if rec.Valid {
				t.Fatal("reset must not revalidate keys")
			}
		case 2:
			if !rec.Cooldown {
				t.Fatal("reset must not clear cooldown")
			}
		}
	}

	// Invalid key stays unpickable after the reset.
	if e := pool.Pick(); e == nil || e.ID() != 2 {
		t.Fatalf("expected only key 2 pickable after reset, got %v", e)
	}
}
