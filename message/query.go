package message

import (
	"time"

	"github.com/xraph/mediator/id"
)

// Query requests a read. Exactly one handler serves a type.
//
// Caching is opt-in and keyed by CacheKey, which the caller must supply
// whenever CacheTime is positive; it is never derived from the payload.
type Query struct {
	ID       id.QueryID `json:"id"`
	Type     string     `json:"type"`
	Payload  any        `json:"payload,omitempty"`
	Metadata Metadata   `json:"metadata,omitempty"`

	// CacheKey identifies the cached result of this query.
	CacheKey string `json:"cache_key,omitempty"`

	// CacheTime is how long a result stays usable. Zero disables caching
	// for this query entirely: nothing is read from or written to the cache.
	CacheTime time.Duration `json:"cache_time,omitempty"`

	// StaleTime is how long a result stays fresh. Past it, and until
	// CacheTime, the result is served stale while it is refreshed in the
	// background. Zero or a value not below CacheTime means no stale window.
	StaleTime time.Duration `json:"stale_time,omitempty"`

	// DisableSWR turns stale reads into cold fetches for this query.
	DisableSWR bool `json:"disable_swr,omitempty"`
}

// QueryOption configures a Query built with NewQuery.
type QueryOption func(*Query)

// WithCacheTime sets the cache lifetime.
func WithCacheTime(d time.Duration) QueryOption {
	return func(q *Query) { q.CacheTime = d }
}

// WithStaleTime sets the freshness window.
func WithStaleTime(d time.Duration) QueryOption {
	return func(q *Query) { q.StaleTime = d }
}

// WithoutSWR disables stale-while-revalidate for the query.
func WithoutSWR() QueryOption {
	return func(q *Query) { q.DisableSWR = true }
}

// WithQueryMetadata attaches metadata to the query.
func WithQueryMetadata(md Metadata) QueryOption {
	return func(q *Query) { q.Metadata = md }
}

// NewQuery builds a query with a fresh ID.
func NewQuery(typ, cacheKey string, payload any, opts ...QueryOption) *Query {
	q := &Query{
		ID:       id.NewQueryID(),
		Type:     typ,
		Payload:  payload,
		CacheKey: cacheKey,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Query) Kind() Kind                { return KindQuery }
func (q *Query) MessageType() string       { return q.Type }
func (q *Query) MessageID() id.ID          { return q.ID }
func (q *Query) MessagePayload() any       { return q.Payload }
func (q *Query) MessageMetadata() Metadata { return q.Metadata }

// Cacheable reports whether results of q may be cached.
func (q *Query) Cacheable() bool { return q.CacheTime > 0 }

// EffectiveStaleTime returns the freshness window, falling back to
// CacheTime when StaleTime is unset or out of range.
func (q *Query) EffectiveStaleTime() time.Duration {
	if q.StaleTime <= 0 || q.StaleTime >= q.CacheTime {
		return q.CacheTime
	}
	return q.StaleTime
}
