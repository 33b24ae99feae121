package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/mediator/cache"
	"github.com/xraph/mediator/dlq"
	"github.com/xraph/mediator/store"
)

// Compile-time interface checks.
var (
	_ cache.Store = (*Store)(nil)
	_ dlq.Store   = (*Store)(nil)
	_ store.Store = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithCodec selects the encoding of cache entries. Defaults to JSON.
func WithCodec(c Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithKeyPrefix replaces the "mediator:" namespace of every key. Useful
// when several mediators share one database.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// Store implements cache.Store and dlq.Store backed by Redis.
type Store struct {
	client redis.Cmdable
	codec  Codec
	prefix string
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		codec:  JSONCodec{},
		prefix: defaultPrefix,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Codec returns the codec used for cache entries.
func (s *Store) Codec() Codec { return s.codec }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op. The caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
