package cache

import (
	"time"

	"github.com/xraph/mediator/message"
)

// Entry is a cached query result.
type Entry struct {
	Data      any       `json:"data" msgpack:"data"`
	StoredAt  time.Time `json:"stored_at" msgpack:"stored_at"`
	StaleAt   time.Time `json:"stale_at" msgpack:"stale_at"`
	ExpiresAt time.Time `json:"expires_at" msgpack:"expires_at"`
}

// NewEntry stamps data stored at now under p. StaleAt never passes
// ExpiresAt.
func NewEntry(data any, now time.Time, p Policy) *Entry {
	return &Entry{
		Data:      data,
		StoredAt:  now,
		StaleAt:   now.Add(p.effectiveStaleTime()),
		ExpiresAt: now.Add(p.CacheTime),
	}
}

// Fresh reports whether the entry can be served without revalidation.
func (e *Entry) Fresh(now time.Time) bool { return now.Before(e.StaleAt) }

// Stale reports whether the entry is inside its stale window.
func (e *Entry) Stale(now time.Time) bool {
	return !now.Before(e.StaleAt) && now.Before(e.ExpiresAt)
}

// Expired reports whether the entry is past ExpiresAt.
func (e *Entry) Expired(now time.Time) bool { return !now.Before(e.ExpiresAt) }

// Policy is the caching behaviour requested for one fetch.
type Policy struct {
	// CacheTime is the total lifetime of an entry. Zero disables caching.
	CacheTime time.Duration

	// StaleTime is when an entry turns stale. Values <= 0 or >= CacheTime
	// mean the entry is fresh for its whole lifetime.
	StaleTime time.Duration

	// SWR allows serving stale entries while refreshing in the background.
	SWR bool
}

// PolicyFor derives the policy of q.
func PolicyFor(q *message.Query) Policy {
	return Policy{
		CacheTime: q.CacheTime,
		StaleTime: q.StaleTime,
		SWR:       !q.DisableSWR,
	}
}

// Cacheable reports whether the policy stores results at all.
func (p Policy) Cacheable() bool { return p.CacheTime > 0 }

func (p Policy) effectiveStaleTime() time.Duration {
	if p.StaleTime <= 0 || p.StaleTime >= p.CacheTime {
		return p.CacheTime
	}
	return p.StaleTime
}
