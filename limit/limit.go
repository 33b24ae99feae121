package limit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TenantKey is the metadata field that names the tenant of a message.
const TenantKey = "tenant_id"

// Config defines admission limits for one message type.
type Config struct {
	// Type is the message type the limits apply to.
	Type string

	// MaxConcurrency caps how many messages of this type may be inside a
	// handler at once. Zero means no cap.
	MaxConcurrency int

	// RateLimit is the sustained number of messages per second admitted
	// for this type. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the token bucket size. It defaults to 1 when RateLimit
	// is set.
	RateBurst int
}

// gateKey identifies a gate. Type-wide gates have an empty tenant.
type gateKey struct {
	typ    string
	tenant string
}

// gate is the admission state of one type or one type+tenant pair.
type gate struct {
	limiter *rate.Limiter
	max     int
	active  int
}

func newGate(limit float64, burst, maxConcurrency int) *gate {
	g := &gate{max: maxConcurrency}
	if limit > 0 {
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
	return g
}

func (g *gate) full() bool { return g.max > 0 && g.active >= g.max }

// Manager admits messages against per-type and per-tenant limits. It is
// safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	gates map[gateKey]*gate
	now   func() time.Time
}

// NewManager creates a Manager with the given type limits. Types without
// a Config are never limited.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		gates: make(map[gateKey]*gate, len(configs)),
		now:   time.Now,
	}
	for _, cfg := range configs {
		m.gates[gateKey{typ: cfg.Type}] = newGate(cfg.RateLimit, cfg.RateBurst, cfg.MaxConcurrency)
	}
	return m
}

// gatesLocked returns the configured gates a message of typ from tenant
// must pass, type-wide first.
func (m *Manager) gatesLocked(typ, tenant string) []*gate {
	gates := make([]*gate, 0, 2)
	if g := m.gates[gateKey{typ: typ}]; g != nil {
		gates = append(gates, g)
	}
	if tenant != "" {
		if g := m.gates[gateKey{typ: typ, tenant: tenant}]; g != nil {
			gates = append(gates, g)
		}
	}
	return gates
}

// Acquire admits one message of typ for tenant, or reports false without
// changing any state. Concurrency caps are checked before any rate token
// is taken, and tokens taken for a message that is then refused are
// handed back. Every successful Acquire must be paired with Release.
func (m *Manager) Acquire(typ, tenant string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	gates := m.gatesLocked(typ, tenant)
	for _, g := range gates {
		if g.full() {
			return false
		}
	}

	now := m.now()
	reserved := make([]*rate.Reservation, 0, len(gates))
	for _, g := range gates {
		if g.limiter == nil {
			continue
		}
		r := g.limiter.ReserveN(now, 1)
		if !r.OK() || r.DelayFrom(now) > 0 {
			r.CancelAt(now)
			for _, prev := range reserved {
				prev.CancelAt(now)
			}
			return false
		}
		reserved = append(reserved, r)
	}

	for _, g := range gates {
		g.active++
	}
	return true
}

// Release returns the concurrency slots taken by a successful Acquire.
func (m *Manager) Release(typ, tenant string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.gatesLocked(typ, tenant) {
		if g.active > 0 {
			g.active--
		}
	}
}

// SetConfig replaces the limits of cfg.Type, keeping its active count.
func (m *Manager) SetConfig(cfg Config) {
	m.set(gateKey{typ: cfg.Type}, newGate(cfg.RateLimit, cfg.RateBurst, cfg.MaxConcurrency))
}

func (m *Manager) set(k gateKey, g *gate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old := m.gates[k]; old != nil {
		g.active = old.active
	}
	m.gates[k] = g
}

// ActiveCount returns the number of admitted messages of typ still in a
// handler. Unconfigured types always report zero.
func (m *Manager) ActiveCount(typ string) int {
	return m.active(gateKey{typ: typ})
}

func (m *Manager) active(k gateKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.gates[k]; g != nil {
		return g.active
	}
	return 0
}
