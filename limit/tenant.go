package limit

// TenantConfig defines limits for one tenant on one message type. They
// apply on top of the type-wide Config, if any.
type TenantConfig struct {
	Type     string
	TenantID string

	RateLimit      float64
	RateBurst      int
	MaxConcurrency int
}

// SetTenantConfig installs or replaces the limits for cfg.TenantID on
// cfg.Type. Messages already admitted keep their slots. An empty
// TenantID is ignored.
func (m *Manager) SetTenantConfig(cfg TenantConfig) {
	if cfg.TenantID == "" {
		return
	}
	k := gateKey{typ: cfg.Type, tenant: cfg.TenantID}
	m.set(k, newGate(cfg.RateLimit, cfg.RateBurst, cfg.MaxConcurrency))
}

// TenantActiveCount returns the number of admitted messages of typ for
// tenant. Tenants without a TenantConfig always report zero.
func (m *Manager) TenantActiveCount(typ, tenant string) int {
	return m.active(gateKey{typ: typ, tenant: tenant})
}
