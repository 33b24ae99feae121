package mediator

import "time"

// Config holds the settings shared by the buses and the query cache.
// It is passed explicitly to constructors; there is no global instance.
type Config struct {
	// StaleWhileRevalidate serves stale query results while a background
	// refresh runs. When false, stale entries are treated as cold.
	StaleWhileRevalidate bool

	// StaleRetention is how long an entry is kept in the store after it
	// expires, so it can still be served if a fetch fails.
	StaleRetention time.Duration

	// RefreshDelay is the delay before a background refresh fires after a
	// stale read.
	RefreshDelay time.Duration

	// RefreshMaxRetries bounds how often a failed background refresh is
	// rescheduled before it gives up.
	RefreshMaxRetries int

	// RefreshTimeout bounds a single background refresh attempt.
	RefreshTimeout time.Duration

	// LockStripes is the number of lock stripes guarding per-key cache state.
	LockStripes int

	// EventConcurrency limits concurrent subscriber deliveries per publish.
	EventConcurrency int

	// ShutdownTimeout is the maximum time Stop waits for in-flight work.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StaleWhileRevalidate: true,
		StaleRetention:       5 * time.Minute,
		RefreshDelay:         0,
		RefreshMaxRetries:    3,
		RefreshTimeout:       30 * time.Second,
		LockStripes:          64,
		EventConcurrency:     16,
		ShutdownTimeout:      30 * time.Second,
	}
}
