// Package query provides the query bus. A query has exactly one handler.
// Cacheable queries (CacheTime > 0) are answered through the query cache,
// which deduplicates concurrent calls per cache key and serves stale
// results while revalidating; CacheTime == 0 always runs the handler.
//
// The middleware pipeline wraps the cache lookup, so validation and
// logging middleware see every call, including cache hits. Background
// refreshes run the handler through the pipeline again on their own
// invocation.
package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/cache"
	"github.com/xraph/mediator/ext"
	"github.com/xraph/mediator/message"
	"github.com/xraph/mediator/middleware"
	"github.com/xraph/mediator/registry"
)

// Bus dispatches queries to their registered handler.
type Bus struct {
	registry   *registry.Registry
	cache      *cache.Cache
	pipeline   middleware.Middleware
	logger     *slog.Logger
	extensions *ext.Registry
}

// Option configures a Bus.
type Option func(*Bus)

// WithMiddleware sets the pipeline. The first middleware is outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(b *Bus) { b.pipeline = middleware.Chain(mws...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithExtensions sets the registry notified after each execution.
func WithExtensions(r *ext.Registry) Option {
	return func(b *Bus) { b.extensions = r }
}

// New creates a query bus. qc may be nil, in which case every query runs
// its handler.
func New(reg *registry.Registry, qc *cache.Cache, opts ...Option) *Bus {
	b := &Bus{registry: reg, cache: qc, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute answers q. The Result carries FromCache and IsStale for cached
// answers. Like the command bus it never panics and reports every failure
// through Result.ErrorCode.
func (b *Bus) Execute(ctx context.Context, q *message.Query) mediator.Result {
	if q == nil {
		return mediator.Fail(mediator.ErrNilMessage)
	}

	h, ok := b.registry.Query(q.Type)
	if !ok {
		res := mediator.Fail(fmt.Errorf("%w: query %q", mediator.ErrHandlerNotFound, q.Type))
		b.extensions.EmitQueryExecuted(ctx, q, res, 0)
		return res
	}
	if q.Cacheable() && q.CacheKey == "" {
		res := mediator.Fail(fmt.Errorf("%w: query %q", mediator.ErrMissingCacheKey, q.Type))
		b.extensions.EmitQueryExecuted(ctx, q, res, 0)
		return res
	}

	handle := func(ctx context.Context) (any, error) {
		return h.HandleQuery(ctx, q)
	}
	// Background refreshes call the fetcher outside this Execute, so they
	// get their own pass through the pipeline.
	fetch := func(ctx context.Context) (any, error) {
		if cache.IsRefresh(ctx) {
			return middleware.Run(ctx, b.pipeline, middleware.NewInvocation(q), handle)
		}
		return handle(ctx)
	}

	var out cache.Outcome
	inv := middleware.NewInvocation(q)
	data, err := middleware.Run(ctx, b.pipeline, inv, func(ctx context.Context) (any, error) {
		if !q.Cacheable() || b.cache == nil {
			return handle(ctx)
		}
		var err error
		out, err = b.cache.Fetch(ctx, q.CacheKey, cache.PolicyFor(q), fetch)
		return out.Data, err
	})

	var res mediator.Result
	if err != nil {
		res = mediator.Fail(err)
		b.logger.Debug("query failed",
			slog.String("type", q.Type),
			slog.String("cache_key", q.CacheKey),
			slog.String("error_code", string(res.ErrorCode)),
			slog.String("error", err.Error()),
		)
	} else {
		res = mediator.OK(data)
		res.FromCache = out.FromCache
		res.IsStale = out.IsStale
	}
	b.extensions.EmitQueryExecuted(ctx, q, res, inv.Elapsed())
	return res
}

// Invalidate drops the cached entry, pending fetch and background refresh
// for key.
func (b *Bus) Invalidate(ctx context.Context, key string) error {
	if b.cache == nil {
		return nil
	}
	return b.cache.Invalidate(ctx, key)
}

// Reset returns key to a cold state.
func (b *Bus) Reset(ctx context.Context, key string) error {
	if b.cache == nil {
		return nil
	}
	return b.cache.Reset(ctx, key)
}

// InvalidatePattern invalidates every key matching the glob pattern.
func (b *Bus) InvalidatePattern(ctx context.Context, pattern string) error {
	if b.cache == nil {
		return nil
	}
	_, err := b.cache.InvalidatePattern(ctx, pattern)
	return err
}

// InvalidateCache is the entry point for external cache busting. With a
// key it invalidates that key; with an empty key it invalidates every key
// of the form "<queryType>:*".
func (b *Bus) InvalidateCache(ctx context.Context, queryType, key string) error {
	if queryType == "" {
		return mediator.ErrInvalidType
	}
	b.logger.Debug("invalidating query cache",
		slog.String("type", queryType),
		slog.String("cache_key", key),
	)
	if key == "" {
		return b.InvalidatePattern(ctx, queryType+":*")
	}
	return b.Invalidate(ctx, key)
}

// Cache returns the query cache, or nil.
func (b *Bus) Cache() *cache.Cache { return b.cache }
