package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/backoff"
	"github.com/xraph/mediator/cache"
	"github.com/xraph/mediator/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupCache(t *testing.T, mutate func(*mediator.Config), opts ...cache.Option) (*cache.Cache, *fakeClock, *memory.Store) {
	t.Helper()
	clk := newFakeClock()
	cfg := mediator.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	store := memory.New(memory.WithClock(clk.Now))
	opts = append([]cache.Option{
		cache.WithClock(clk.Now),
		cache.WithRefreshBackoff(backoff.NewConstant(time.Millisecond)),
	}, opts...)
	c := cache.New(store, cfg, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Close(ctx); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return c, clk, store
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// counter returns a fetcher that counts calls and delegates to fn.
func counter(n *atomic.Int32, fn func(call int32) (any, error)) cache.Fetcher {
	return func(_ context.Context) (any, error) {
		return fn(n.Add(1))
	}
}

var swrPolicy = cache.Policy{CacheTime: 5 * time.Second, StaleTime: 2 * time.Second, SWR: true}

func TestEntry_Freshness(t *testing.T) {
	now := time.Unix(0, 0)
	e := cache.NewEntry("x", now, swrPolicy)

	if !e.ExpiresAt.Equal(now.Add(5*time.Second)) || !e.StaleAt.Equal(now.Add(2*time.Second)) {
		t.Fatalf("unexpected stamps: stale=%v expires=%v", e.StaleAt, e.ExpiresAt)
	}

	tests := []struct {
		at                    time.Duration
		fresh, stale, expired bool
	}{
		{0, true, false, false},
		{time.Second, true, false, false},
		{2 * time.Second, false, true, false},
		{4 * time.Second, false, true, false},
		{5 * time.Second, false, false, true},
	}
	for _, tt := range tests {
		at := now.Add(tt.at)
		if e.Fresh(at) != tt.fresh || e.Stale(at) != tt.stale || e.Expired(at) != tt.expired {
			t.Errorf("at %v: fresh=%v stale=%v expired=%v", tt.at, e.Fresh(at), e.Stale(at), e.Expired(at))
		}
	}
}

func TestEntry_UnsetStaleTime(t *testing.T) {
	now := time.Unix(0, 0)
	for _, st := range []time.Duration{0, -time.Second, 5 * time.Second, 10 * time.Second} {
		e := cache.NewEntry("x", now, cache.Policy{CacheTime: 5 * time.Second, StaleTime: st})
		if !e.StaleAt.Equal(e.ExpiresAt) {
			t.Errorf("StaleTime %v: StaleAt %v != ExpiresAt %v", st, e.StaleAt, e.ExpiresAt)
		}
	}
}

func TestFetch_StaleWhileRevalidateTimeline(t *testing.T) {
	c, clk, _ := setupCache(t, func(cfg *mediator.Config) { cfg.RefreshMaxRetries = 0 })
	ctx := context.Background()
	const key = "GetOrder:o1"

	var calls atomic.Int32
	fetch := counter(&calls, func(call int32) (any, error) {
		if call == 2 {
			return nil, errors.New("refresh failed")
		}
		return map[string]string{"id": "o1"}, nil
	})

	// t=0: cold.
	out, err := c.Fetch(ctx, key, swrPolicy, fetch)
	if err != nil {
		t.Fatalf("t=0: %v", err)
	}
	if out.FromCache || out.IsStale {
		t.Fatalf("t=0: got %+v, want a fresh fetch", out)
	}

	// t=1: fresh hit.
	clk.Advance(time.Second)
	out, _ = c.Fetch(ctx, key, swrPolicy, fetch)
	if !out.FromCache || out.IsStale {
		t.Fatalf("t=1: got %+v, want fresh cache hit", out)
	}

	// t=3: stale hit and a refresh is scheduled.
	clk.Advance(2 * time.Second)
	out, _ = c.Fetch(ctx, key, swrPolicy, fetch)
	if !out.FromCache || !out.IsStale {
		t.Fatalf("t=3: got %+v, want stale cache hit", out)
	}
	waitFor(t, "refresh attempt", func() bool { return calls.Load() == 2 })
	waitFor(t, "refresh handle release", func() bool { return !c.HasRefresh(key) })

	// t=10: the refresh never succeeded, so the next call is cold.
	clk.Advance(7 * time.Second)
	out, err = c.Fetch(ctx, key, swrPolicy, fetch)
	if err != nil {
		t.Fatalf("t=10: %v", err)
	}
	if out.FromCache || out.IsStale {
		t.Fatalf("t=10: got %+v, want a cold fetch", out)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("fetch calls = %d, want 3", got)
	}

	st := c.Stats()
	if st.Hits != 1 || st.StaleHits != 1 || st.Misses != 2 || st.RefreshFailures != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestFetch_SingleFlight(t *testing.T) {
	c, _, _ := setupCache(t, nil)
	const n = 10

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := counter(&calls, func(int32) (any, error) {
		<-release
		return "o1", nil
	})

	var wg sync.WaitGroup
	outs := make([]cache.Outcome, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outs[i], errs[i] = c.Fetch(context.Background(), "GetOrder:o1", swrPolicy, fetch)
		}()
	}

	waitFor(t, "all callers to register", func() bool {
		st := c.Stats()
		return st.Misses+st.Joined == n
	})
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("handler invoked %d times, want 1", got)
	}
	fromFetch := 0
	for i := range n {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if outs[i].Data != "o1" {
			t.Errorf("caller %d: data = %v", i, outs[i].Data)
		}
		if !outs[i].FromCache {
			fromFetch++
		}
	}
	if fromFetch != 1 {
		t.Errorf("%d callers reported a fresh fetch, want 1", fromFetch)
	}
}

func TestFetch_ZeroCacheTimeBypasses(t *testing.T) {
	c, _, store := setupCache(t, nil)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := counter(&calls, func(int32) (any, error) { return "v", nil })
	p := cache.Policy{CacheTime: 0, StaleTime: time.Second, SWR: true}

	for i := range 3 {
		out, err := c.Fetch(ctx, "GetOrder:o1", p, fetch)
		if err != nil {
			t.Fatal(err)
		}
		if out.FromCache {
			t.Fatalf("call %d served from cache", i)
		}
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if store.Len() != 0 || c.HasEntry(ctx, "GetOrder:o1") || c.HasPending("GetOrder:o1") {
		t.Fatal("zero cache time left state behind")
	}
}

func TestFetch_MissingKey(t *testing.T) {
	c, _, _ := setupCache(t, nil)

	_, err := c.Fetch(context.Background(), "", swrPolicy, func(context.Context) (any, error) {
		t.Fatal("fetcher must not run without a key")
		return nil, nil
	})
	if !errors.Is(err, mediator.ErrMissingCacheKey) {
		t.Fatalf("expected ErrMissingCacheKey, got %v", err)
	}
}

func TestFetch_RefreshScheduledOnce(t *testing.T) {
	c, clk, _ := setupCache(t, func(cfg *mediator.Config) { cfg.RefreshDelay = 200 * time.Millisecond })
	ctx := context.Background()
	const key = "GetOrder:o1"

	var calls atomic.Int32
	fetch := counter(&calls, func(call int32) (any, error) { return call, nil })

	_, _ = c.Fetch(ctx, key, swrPolicy, fetch)
	clk.Advance(3 * time.Second)

	for range 5 {
		out, _ := c.Fetch(ctx, key, swrPolicy, fetch)
		if !out.IsStale {
			t.Fatalf("expected stale hit, got %+v", out)
		}
	}
	if !c.HasRefresh(key) {
		t.Fatal("expected a scheduled refresh")
	}

	waitFor(t, "refresh", func() bool { return !c.HasRefresh(key) })
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}

	out, _ := c.Fetch(ctx, key, swrPolicy, fetch)
	if !out.FromCache || out.IsStale || out.Data != int32(2) {
		t.Fatalf("after refresh got %+v, want fresh data 2", out)
	}
	if c.Stats().Refreshes != 1 {
		t.Errorf("Refreshes = %d, want 1", c.Stats().Refreshes)
	}
}

func TestFetch_RefreshRetriesThenGivesUp(t *testing.T) {
	c, clk, _ := setupCache(t, func(cfg *mediator.Config) { cfg.RefreshMaxRetries = 2 })
	ctx := context.Background()
	const key = "GetOrder:o1"

	var calls atomic.Int32
	fetch := counter(&calls, func(call int32) (any, error) {
		if call > 1 {
			return nil, errors.New("down")
		}
		return "v1", nil
	})

	_, _ = c.Fetch(ctx, key, swrPolicy, fetch)
	clk.Advance(3 * time.Second)
	_, _ = c.Fetch(ctx, key, swrPolicy, fetch)

	waitFor(t, "refresh to give up", func() bool { return !c.HasRefresh(key) })
	if got := calls.Load(); got != 4 {
		t.Fatalf("calls = %d, want 1 fetch + 3 refresh attempts", got)
	}
	if got := c.Stats().RefreshFailures; got != 3 {
		t.Errorf("RefreshFailures = %d, want 3", got)
	}
}

func TestFetch_SWRDisabledTreatsStaleAsCold(t *testing.T) {
	c, clk, _ := setupCache(t, nil)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := counter(&calls, func(call int32) (any, error) { return call, nil })
	p := swrPolicy
	p.SWR = false

	_, _ = c.Fetch(ctx, "k", p, fetch)
	clk.Advance(3 * time.Second)
	out, err := c.Fetch(ctx, "k", p, fetch)
	if err != nil {
		t.Fatal(err)
	}
	if out.FromCache || out.Data != int32(2) {
		t.Fatalf("got %+v, want a foreground fetch", out)
	}
	if c.HasRefresh("k") {
		t.Fatal("no background refresh expected")
	}
}

func TestFetch_FallbackToRetainedEntry(t *testing.T) {
	c, clk, _ := setupCache(t, nil)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := counter(&calls, func(call int32) (any, error) {
		if call > 1 {
			return nil, errors.New("backend down")
		}
		return "v1", nil
	})

	_, _ = c.Fetch(ctx, "k", swrPolicy, fetch)
	clk.Advance(10 * time.Second)

	out, err := c.Fetch(ctx, "k", swrPolicy, fetch)
	if err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}
	if !out.FromCache || !out.IsStale || out.Data != "v1" {
		t.Fatalf("got %+v, want stale v1", out)
	}
	if c.Stats().Fallbacks != 1 {
		t.Errorf("Fallbacks = %d, want 1", c.Stats().Fallbacks)
	}
}

func TestFetch_ErrorWithoutEntry(t *testing.T) {
	c, _, _ := setupCache(t, nil)
	want := errors.New("backend down")

	_, err := c.Fetch(context.Background(), "k", swrPolicy, func(context.Context) (any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if c.HasEntry(context.Background(), "k") || c.HasPending("k") {
		t.Fatal("failed fetch left state behind")
	}
}

func TestFetch_PanicBecomesExecutionError(t *testing.T) {
	c, _, _ := setupCache(t, nil)

	_, err := c.Fetch(context.Background(), "k", swrPolicy, func(context.Context) (any, error) {
		panic("boom")
	})
	if !errors.Is(err, mediator.ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
}

func TestFetch_CanceledWaiterDoesNotCancelSharedFetch(t *testing.T) {
	c, _, _ := setupCache(t, nil)

	release := make(chan struct{})
	var fetchErr atomic.Value
	fetch := func(ctx context.Context) (any, error) {
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
			return nil, err
		}
		return "shared", nil
	}

	ctx1, cancel1 := context.WithCancel(context.Background())
	done1 := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx1, "k", swrPolicy, fetch)
		done1 <- err
	}()
	waitFor(t, "first fetch", func() bool { return c.HasPending("k") })

	done2 := make(chan cache.Outcome, 1)
	go func() {
		out, _ := c.Fetch(context.Background(), "k", swrPolicy, fetch)
		done2 <- out
	}()
	waitFor(t, "second caller to join", func() bool { return c.Stats().Joined == 1 })

	cancel1()
	if err := <-done1; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled waiter got %v", err)
	}

	close(release)
	out := <-done2
	if out.Data != "shared" {
		t.Fatalf("surviving waiter got %+v", out)
	}
	if fetchErr.Load() != nil {
		t.Fatal("shared fetch observed a cancellation")
	}
	if !c.HasEntry(context.Background(), "k") {
		t.Fatal("shared fetch result was not stored")
	}
}

func TestInvalidate_ClearsEntryAndRefresh(t *testing.T) {
	c, clk, _ := setupCache(t, func(cfg *mediator.Config) { cfg.RefreshDelay = time.Hour })
	ctx := context.Background()
	const key = "GetOrder:o1"

	var calls atomic.Int32
	fetch := counter(&calls, func(call int32) (any, error) { return call, nil })

	_, _ = c.Fetch(ctx, key, swrPolicy, fetch)
	clk.Advance(3 * time.Second)
	_, _ = c.Fetch(ctx, key, swrPolicy, fetch)
	if !c.HasRefresh(key) {
		t.Fatal("expected a parked refresh")
	}

	if err := c.Invalidate(ctx, key); err != nil {
		t.Fatal(err)
	}
	if c.HasEntry(ctx, key) || c.HasRefresh(key) || c.HasPending(key) {
		t.Fatal("invalidate left state behind")
	}

	out, _ := c.Fetch(ctx, key, swrPolicy, fetch)
	if out.FromCache {
		t.Fatalf("call after invalidate got %+v, want a fresh fetch", out)
	}
}

func TestInvalidate_DropsPendingFetch(t *testing.T) {
	c, _, _ := setupCache(t, nil)
	ctx := context.Background()

	release := make(chan struct{})
	done := make(chan cache.Outcome, 1)
	go func() {
		out, _ := c.Fetch(ctx, "k", swrPolicy, func(context.Context) (any, error) {
			<-release
			return "old", nil
		})
		done <- out
	}()
	waitFor(t, "pending fetch", func() bool { return c.HasPending("k") })

	if err := c.Reset(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if c.HasPending("k") {
		t.Fatal("reset left the pending fetch")
	}

	close(release)
	if out := <-done; out.Data != "old" {
		t.Fatalf("in-flight caller got %+v", out)
	}
	if c.HasEntry(ctx, "k") {
		t.Fatal("invalidated fetch wrote its result back")
	}
}

func TestInvalidate_KeepsRefreshFetchForJoinedCallers(t *testing.T) {
	c, clk, _ := setupCache(t, nil)
	ctx := context.Background()
	const key = "GetOrder:o1"

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := counter(&calls, func(call int32) (any, error) {
		if call == 1 {
			return "v1", nil
		}
		<-release
		return "v2", nil
	})

	_, _ = c.Fetch(ctx, key, swrPolicy, fetch)
	clk.Advance(3 * time.Second)
	if out, _ := c.Fetch(ctx, key, swrPolicy, fetch); !out.IsStale {
		t.Fatalf("expected stale hit, got %+v", out)
	}
	waitFor(t, "refresh fetch", func() bool { return c.HasPending(key) })

	type result struct {
		out cache.Outcome
		err error
	}
	done := make(chan result, 1)
	noSWR := swrPolicy
	noSWR.SWR = false
	go func() {
		out, err := c.Fetch(ctx, key, noSWR, fetch)
		done <- result{out, err}
	}()
	waitFor(t, "caller to join the refresh", func() bool { return c.Stats().Joined == 1 })

	if err := c.Invalidate(ctx, key); err != nil {
		t.Fatal(err)
	}
	close(release)

	got := <-done
	if got.err != nil {
		t.Fatalf("joined caller err = %v, want nil", got.err)
	}
	if got.out.Data != "v2" {
		t.Fatalf("joined caller got %+v, want data v2", got.out)
	}
	waitFor(t, "refresh to retire", func() bool { return !c.HasPending(key) && !c.HasRefresh(key) })
	if c.HasEntry(ctx, key) {
		t.Fatal("invalidated refresh wrote its result back")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestIsRefresh(t *testing.T) {
	c, clk, _ := setupCache(t, nil)
	ctx := context.Background()

	var seen []bool
	var mu sync.Mutex
	fetch := func(ctx context.Context) (any, error) {
		mu.Lock()
		seen = append(seen, cache.IsRefresh(ctx))
		mu.Unlock()
		return "v", nil
	}

	_, _ = c.Fetch(ctx, "k", swrPolicy, fetch)
	clk.Advance(3 * time.Second)
	_, _ = c.Fetch(ctx, "k", swrPolicy, fetch)
	waitFor(t, "refresh", func() bool { return !c.HasRefresh("k") })

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] || !seen[1] {
		t.Fatalf("IsRefresh per call = %v, want [false true]", seen)
	}
}

func TestInvalidatePattern(t *testing.T) {
	c, _, _ := setupCache(t, nil)
	ctx := context.Background()

	fetch := func(context.Context) (any, error) { return "v", nil }
	for _, k := range []string{"GetOrder:o1", "GetOrder:o2", "GetUser:u1"} {
		if _, err := c.Fetch(ctx, k, swrPolicy, fetch); err != nil {
			t.Fatal(err)
		}
	}

	n, err := c.InvalidatePattern(ctx, "GetOrder:*")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	if !c.HasEntry(ctx, "GetUser:u1") || c.HasEntry(ctx, "GetOrder:o1") {
		t.Fatal("pattern matched the wrong keys")
	}

	if _, err := c.InvalidatePattern(ctx, "["); err == nil {
		t.Fatal("expected error for malformed pattern")
	}
}

func TestClose_DrainsRefreshTimers(t *testing.T) {
	clk := newFakeClock()
	cfg := mediator.DefaultConfig()
	cfg.RefreshDelay = time.Hour
	c := cache.New(memory.New(memory.WithClock(clk.Now)), cfg, cache.WithClock(clk.Now))
	ctx := context.Background()

	fetch := func(context.Context) (any, error) { return "v", nil }
	_, _ = c.Fetch(ctx, "k", swrPolicy, fetch)
	clk.Advance(3 * time.Second)
	_, _ = c.Fetch(ctx, "k", swrPolicy, fetch)

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.HasRefresh("k") {
		t.Fatal("refresh handle survived Close")
	}
	if _, err := c.Fetch(ctx, "k", swrPolicy, fetch); !errors.Is(err, mediator.ErrCacheClosed) {
		t.Fatalf("Fetch after Close = %v, want ErrCacheClosed", err)
	}
	if err := c.Close(closeCtx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestClose_CancelsInFlightFetch(t *testing.T) {
	c := cache.New(memory.New(), mediator.DefaultConfig())

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), "k", swrPolicy, func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("in-flight caller got %v, want context.Canceled", err)
	}
}
