package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/cache"
	"github.com/xraph/mediator/dlq"
	"github.com/xraph/mediator/id"
	"github.com/xraph/mediator/store"
)

// Ensure Store implements the composite contract at compile time.
var _ store.Store = (*Store)(nil)

type cacheItem struct {
	entry     cache.Entry
	evictAt   time.Time
	permanent bool
}

// Store is a fully in-memory implementation of the cache and DLQ stores.
// Safe for concurrent access. Cache items past their TTL are invisible to
// Get and are physically removed by Sweep.
type Store struct {
	mu sync.RWMutex

	items map[string]*cacheItem
	dlqs  map[string]*dlq.Entry

	now     func() time.Time
	sweeper *cron.Cron
	closed  bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for TTL bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(m *Store) { m.now = now }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	m := &Store{
		items: make(map[string]*cacheItem),
		dlqs:  make(map[string]*dlq.Entry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ──────────────────────────────────────────────────
// Lifecycle — Sweeper / Ping / Close
// ──────────────────────────────────────────────────

// StartSweeper removes expired cache items on the given cron schedule,
// for example "@every 1m". Calling it again replaces the schedule.
func (m *Store) StartSweeper(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { m.Sweep() }); err != nil {
		return fmt.Errorf("memory: sweeper schedule %q: %w", schedule, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return mediator.ErrStoreClosed
	}
	prev := m.sweeper
	m.sweeper = c
	m.mu.Unlock()

	if prev != nil {
		<-prev.Stop().Done()
	}
	c.Start()
	return nil
}

// Sweep removes cache items whose TTL has passed and returns how many
// were removed.
func (m *Store) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for key, it := range m.items {
		if it.expired(now) {
			delete(m.items, key)
			n++
		}
	}
	return n
}

// Ping always succeeds for an open memory store.
func (m *Store) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return mediator.ErrStoreClosed
	}
	return nil
}

// Close stops the sweeper. The data stays readable.
func (m *Store) Close() error {
	m.mu.Lock()
	m.closed = true
	sw := m.sweeper
	m.sweeper = nil
	m.mu.Unlock()

	if sw != nil {
		<-sw.Stop().Done()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Cache Store
// ──────────────────────────────────────────────────

func (it *cacheItem) expired(now time.Time) bool {
	return !it.permanent && !now.Before(it.evictAt)
}

// Get returns a copy of the entry for key.
func (m *Store) Get(_ context.Context, key string) (*cache.Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[key]
	if !ok || it.expired(m.now()) {
		return nil, false, nil
	}
	cp := it.entry
	return &cp, true, nil
}

// Set stores a copy of entry. A ttl <= 0 keeps it until deleted.
func (m *Store) Set(_ context.Context, key string, entry *cache.Entry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = &cacheItem{
		entry:     *entry,
		evictAt:   m.now().Add(ttl),
		permanent: ttl <= 0,
	}
	return nil
}

// Delete removes key.
func (m *Store) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// ClearPattern removes every key matching the glob pattern.
func (m *Store) ClearPattern(_ context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("memory: clear pattern %q: %w", pattern, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.items, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of live cache items.
func (m *Store) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	n := 0
	for _, it := range m.items {
		if !it.expired(now) {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

// PushDLQ adds a failed delivery to the dead letter queue.
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.dlqs[entry.ID.String()] = &cp
	return nil
}

// ListDLQ returns DLQ entries matching the given options.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(m.dlqs))
	for _, e := range m.dlqs {
		if !opts.Match(e) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		if result[i].FailedAt.Equal(result[k].FailedAt) {
			return result[i].ID.String() < result[k].ID.String()
		}
		return result[i].FailedAt.Before(result[k].FailedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (m *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return nil, mediator.ErrDLQNotFound
	}
	cp := *e
	return &cp, nil
}

// ReplayDLQ marks a DLQ entry as replayed.
func (m *Store) ReplayDLQ(_ context.Context, entryID id.DLQID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return mediator.ErrDLQNotFound
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now
	return nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, e := range m.dlqs {
		if e.FailedAt.Before(before) {
			delete(m.dlqs, key)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the total number of entries in the dead letter queue.
func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.dlqs)), nil
}
