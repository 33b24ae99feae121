package cache

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/backoff"
	"github.com/xraph/mediator/ext"
	"github.com/xraph/mediator/id"
)

// Fetcher produces the value for a key on a miss. The context it receives
// is detached from any single caller.
type Fetcher func(ctx context.Context) (any, error)

// Outcome is the answer to one Fetch.
type Outcome struct {
	Data      any
	FromCache bool
	IsStale   bool
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits            int64 `json:"hits"`
	StaleHits       int64 `json:"stale_hits"`
	Misses          int64 `json:"misses"`
	Joined          int64 `json:"joined"`
	Fallbacks       int64 `json:"fallbacks"`
	Refreshes       int64 `json:"refreshes"`
	RefreshFailures int64 `json:"refresh_failures"`
}

// pendingFetch is the single in-flight fetch for a key. data and err are
// written once before done is closed.
type pendingFetch struct {
	done      chan struct{}
	data      any
	err       error
	createdAt time.Time
}

// refreshHandle owns the timer of a background refresh. timer and attempt
// are guarded by the stripe lock of its key.
type refreshHandle struct {
	id      id.RefreshID
	policy  Policy
	fetch   Fetcher
	timer   *time.Timer
	attempt int
}

type stripe struct {
	mu      sync.Mutex
	pending map[string]*pendingFetch
	refresh map[string]*refreshHandle
}

// Cache is a single-flight, stale-while-revalidate query cache over a Store.
type Cache struct {
	store      Store
	cfg        mediator.Config
	stripes    []*stripe
	logger     *slog.Logger
	extensions *ext.Registry
	now        func() time.Time
	retry      backoff.Strategy

	root       context.Context
	cancelRoot context.CancelFunc
	closed     atomic.Bool
	wg         sync.WaitGroup

	hits, staleHits, misses, joined, fallbacks atomic.Int64
	refreshes, refreshFailures                 atomic.Int64
}

// New creates a Cache over store.
func New(store Store, cfg mediator.Config, opts ...Option) *Cache {
	n := cfg.LockStripes
	if n <= 0 {
		n = mediator.DefaultConfig().LockStripes
	}
	c := &Cache{
		store:   store,
		cfg:     cfg,
		stripes: make([]*stripe, n),
		logger:  slog.Default(),
		now:     time.Now,
		retry:   backoff.Default(),
	}
	for i := range c.stripes {
		c.stripes[i] = &stripe{
			pending: make(map[string]*pendingFetch),
			refresh: make(map[string]*refreshHandle),
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	c.root, c.cancelRoot = context.WithCancel(context.Background())
	return c
}

func (c *Cache) stripeFor(key string) *stripe {
	return c.stripes[xxhash.Sum64String(key)%uint64(len(c.stripes))]
}

// Fetch answers key under policy p, calling fetch at most once across all
// concurrent callers of the same key. A policy that is not cacheable calls
// fetch directly and leaves no trace in the cache.
//
// If ctx ends while waiting, Fetch returns ctx.Err() and the shared fetch
// keeps running for the other waiters.
func (c *Cache) Fetch(ctx context.Context, key string, p Policy, fetch Fetcher) (Outcome, error) {
	if c.closed.Load() {
		return Outcome{}, mediator.ErrCacheClosed
	}
	if !p.Cacheable() {
		data, err := call(ctx, fetch)
		return Outcome{Data: data}, err
	}
	if key == "" {
		return Outcome{}, mediator.ErrMissingCacheKey
	}

	s := c.stripeFor(key)
	s.mu.Lock()
	if c.closed.Load() {
		s.mu.Unlock()
		return Outcome{}, mediator.ErrCacheClosed
	}

	if entry := c.lookupLocked(ctx, key); entry != nil {
		now := c.now()
		switch {
		case entry.Fresh(now):
			s.mu.Unlock()
			c.hits.Add(1)
			c.extensions.EmitCacheHit(ctx, key, false)
			return Outcome{Data: entry.Data, FromCache: true}, nil

		case entry.Stale(now) && p.SWR && c.cfg.StaleWhileRevalidate:
			c.scheduleRefreshLocked(s, key, p, fetch)
			s.mu.Unlock()
			c.staleHits.Add(1)
			c.extensions.EmitCacheHit(ctx, key, true)
			return Outcome{Data: entry.Data, FromCache: true, IsStale: true}, nil
		}
	}

	if pf, ok := s.pending[key]; ok {
		s.mu.Unlock()
		c.joined.Add(1)
		return c.await(ctx, s, key, pf, true)
	}

	pf := c.startLocked(ctx, s, key, p, fetch)
	s.mu.Unlock()
	c.misses.Add(1)
	c.extensions.EmitCacheMiss(ctx, key)
	return c.await(ctx, s, key, pf, false)
}

// startLocked registers a pending fetch for key and runs it detached from
// the caller's cancellation.
func (c *Cache) startLocked(ctx context.Context, s *stripe, key string, p Policy, fetch Fetcher) *pendingFetch {
	pf := &pendingFetch{done: make(chan struct{}), createdAt: c.now()}
	s.pending[key] = pf

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fctx, cancel := c.detach(ctx)
		defer cancel()
		c.complete(fctx, s, key, p, pf, fetch)
	}()
	return pf
}

// detach keeps ctx's values but only ends when the cache closes.
func (c *Cache) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.root, cancel)
	return fctx, func() {
		stop()
		cancel()
	}
}

// complete runs fetch for pf and publishes the result. The entry is only
// written while pf is still the registered fetch for key, so a fetch that
// was invalidated mid-flight never repopulates the cache.
func (c *Cache) complete(ctx context.Context, s *stripe, key string, p Policy, pf *pendingFetch, fetch Fetcher) {
	data, err := call(ctx, fetch)

	s.mu.Lock()
	if s.pending[key] == pf {
		delete(s.pending, key)
		if err == nil {
			c.storeLocked(ctx, key, p, data)
		}
	}
	s.mu.Unlock()

	pf.data, pf.err = data, err
	close(pf.done)
}

func (c *Cache) await(ctx context.Context, s *stripe, key string, pf *pendingFetch, joined bool) (Outcome, error) {
	select {
	case <-pf.done:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	if pf.err == nil {
		return Outcome{Data: pf.data, FromCache: joined}, nil
	}

	s.mu.Lock()
	entry := c.lookupLocked(ctx, key)
	s.mu.Unlock()
	if entry == nil {
		return Outcome{}, pf.err
	}

	c.fallbacks.Add(1)
	c.logger.Warn("cache: serving retained entry after fetch failure",
		slog.String("key", key),
		slog.String("error", pf.err.Error()),
	)
	return Outcome{Data: entry.Data, FromCache: true, IsStale: true}, nil
}

func (c *Cache) lookupLocked(ctx context.Context, key string) *Entry {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache: store get failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		return nil
	}
	return entry
}

// storeLocked writes data with a store TTL that outlives ExpiresAt by the
// configured retention, keeping expired entries around for fallback.
func (c *Cache) storeLocked(ctx context.Context, key string, p Policy, data any) {
	entry := NewEntry(data, c.now(), p)
	ttl := p.CacheTime + c.cfg.StaleRetention
	if err := c.store.Set(ctx, key, entry, ttl); err != nil {
		c.logger.Warn("cache: store set failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// call runs fetch and turns a panic into an execution error.
func call(ctx context.Context, fetch Fetcher) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in fetcher: %v", mediator.ErrExecution, r)
		}
	}()
	return fetch(ctx)
}

// Invalidate removes the entry for key together with its refresh handle
// and pending fetch. Callers already waiting on that fetch still receive
// its result, but the result is not written back.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	s := c.stripeFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	c.dropLocked(s, key)
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("cache: invalidate %q: %w", key, err)
	}
	return nil
}

// Reset returns key to a cold state. It clears the same state as
// Invalidate.
func (c *Cache) Reset(ctx context.Context, key string) error {
	return c.Invalidate(ctx, key)
}

// InvalidatePattern invalidates every key matching the glob pattern and
// returns the number of stored entries removed. All stripes are held for
// the duration, so no fetch can interleave.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("cache: invalidate pattern %q: %w", pattern, err)
	}

	for _, s := range c.stripes {
		s.mu.Lock()
	}
	defer func() {
		for _, s := range c.stripes {
			s.mu.Unlock()
		}
	}()

	for _, s := range c.stripes {
		for key := range s.refresh {
			if ok, _ := path.Match(pattern, key); ok {
				c.cancelRefreshLocked(s, key)
			}
		}
		for key := range s.pending {
			if ok, _ := path.Match(pattern, key); ok {
				delete(s.pending, key)
			}
		}
	}

	n, err := c.store.ClearPattern(ctx, pattern)
	if err != nil {
		return n, fmt.Errorf("cache: invalidate pattern %q: %w", pattern, err)
	}
	return n, nil
}

func (c *Cache) dropLocked(s *stripe, key string) {
	c.cancelRefreshLocked(s, key)
	delete(s.pending, key)
}

// Close stops every refresh timer, cancels in-flight fetches and waits
// for them to return or for ctx to end. Fetch fails with ErrCacheClosed
// afterwards. Entries in the store are left alone.
func (c *Cache) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, s := range c.stripes {
		s.mu.Lock()
		for key := range s.refresh {
			c.cancelRefreshLocked(s, key)
		}
		s.mu.Unlock()
	}
	c.cancelRoot()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cache: close: %w", ctx.Err())
	}
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:            c.hits.Load(),
		StaleHits:       c.staleHits.Load(),
		Misses:          c.misses.Load(),
		Joined:          c.joined.Load(),
		Fallbacks:       c.fallbacks.Load(),
		Refreshes:       c.refreshes.Load(),
		RefreshFailures: c.refreshFailures.Load(),
	}
}

// HasEntry reports whether the store holds an entry for key.
func (c *Cache) HasEntry(ctx context.Context, key string) bool {
	s := c.stripeFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.lookupLocked(ctx, key) != nil
}

// HasPending reports whether a fetch for key is in flight.
func (c *Cache) HasPending(key string) bool {
	s := c.stripeFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// HasRefresh reports whether a background refresh is scheduled or running
// for key.
func (c *Cache) HasRefresh(key string) bool {
	s := c.stripeFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refresh[key]
	return ok
}
