package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/mediator/id"
)

// scheduleRefreshLocked arms the background refresh for key unless one
// already exists.
func (c *Cache) scheduleRefreshLocked(s *stripe, key string, p Policy, fetch Fetcher) {
	if _, ok := s.refresh[key]; ok {
		return
	}
	h := &refreshHandle{id: id.NewRefreshID(), policy: p, fetch: fetch}
	s.refresh[key] = h
	c.armLocked(s, key, h, c.cfg.RefreshDelay)
}

func (c *Cache) armLocked(s *stripe, key string, h *refreshHandle, delay time.Duration) {
	c.wg.Add(1)
	h.timer = time.AfterFunc(delay, func() { c.runRefresh(s, key, h) })
}

// cancelRefreshLocked stops and forgets the refresh handle of key. A timer
// that already fired finds its handle gone and exits. An attempt already
// fetching keeps running for any callers that joined it; its result is
// not written back because the pending slot is dropped with the handle.
func (c *Cache) cancelRefreshLocked(s *stripe, key string) {
	h, ok := s.refresh[key]
	if !ok {
		return
	}
	delete(s.refresh, key)
	if h.timer != nil && h.timer.Stop() {
		c.wg.Done()
	}
}

// runRefresh performs one refresh attempt through the key's single-flight
// slot, then either retires the handle or re-arms it with backoff.
func (c *Cache) runRefresh(s *stripe, key string, h *refreshHandle) {
	defer c.wg.Done()

	s.mu.Lock()
	if s.refresh[key] != h {
		s.mu.Unlock()
		return
	}
	h.attempt++
	attempt := h.attempt
	ctx, cancel := c.refreshContext()
	pf, joined := s.pending[key]
	if !joined {
		pf = &pendingFetch{done: make(chan struct{}), createdAt: c.now()}
		s.pending[key] = pf
	}
	s.mu.Unlock()

	var err error
	if joined {
		select {
		case <-pf.done:
			err = pf.err
		case <-ctx.Done():
			err = ctx.Err()
		}
	} else {
		c.complete(ctx, s, key, h.policy, pf, h.fetch)
		err = pf.err
	}
	cancel()

	c.extensions.EmitCacheRefreshed(context.WithoutCancel(ctx), key, attempt, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refresh[key] != h {
		return
	}

	if err == nil {
		delete(s.refresh, key)
		c.refreshes.Add(1)
		return
	}

	c.refreshFailures.Add(1)
	if attempt > c.cfg.RefreshMaxRetries || c.closed.Load() {
		delete(s.refresh, key)
		c.logger.Warn("cache: background refresh gave up",
			slog.String("key", key),
			slog.String("refresh_id", h.id.String()),
			slog.Int("attempts", attempt),
			slog.String("error", err.Error()),
		)
		return
	}

	delay := c.retry.Delay(attempt)
	c.logger.Debug("cache: background refresh failed, retrying",
		slog.String("key", key),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
		slog.String("error", err.Error()),
	)
	c.armLocked(s, key, h, delay)
}

// refreshContext derives an attempt context from the cache root, so only
// Close or RefreshTimeout end it.
func (c *Cache) refreshContext() (context.Context, context.CancelFunc) {
	ctx := context.WithValue(c.root, refreshKey{}, true)
	if c.cfg.RefreshTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.RefreshTimeout)
	}
	return context.WithCancel(ctx)
}

type refreshKey struct{}

// IsRefresh reports whether ctx belongs to a background refresh attempt.
// Fetchers use it to tell refresh traffic from a caller's own fetch.
func IsRefresh(ctx context.Context) bool {
	v, _ := ctx.Value(refreshKey{}).(bool)
	return v
}
