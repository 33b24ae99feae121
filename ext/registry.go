package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/message"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type commandExecutedEntry struct {
	name string
	hook CommandExecuted
}

type queryExecutedEntry struct {
	name string
	hook QueryExecuted
}

type eventDeliveredEntry struct {
	name string
	hook EventDelivered
}

type eventDeadLetteredEntry struct {
	name string
	hook EventDeadLettered
}

type cacheHitEntry struct {
	name string
	hook CacheHit
}

type cacheMissEntry struct {
	name string
	hook CacheMiss
}

type cacheRefreshedEntry struct {
	name string
	hook CacheRefreshed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register is meant for start-up; emitting is safe from any goroutine
// once registration is done. A nil *Registry emits nothing.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	commandExecuted   []commandExecutedEntry
	queryExecuted     []queryExecutedEntry
	eventDelivered    []eventDeliveredEntry
	eventDeadLettered []eventDeadLetteredEntry
	cacheHit          []cacheHitEntry
	cacheMiss         []cacheMissEntry
	cacheRefreshed    []cacheRefreshedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(CommandExecuted); ok {
		r.commandExecuted = append(r.commandExecuted, commandExecutedEntry{name, h})
	}
	if h, ok := e.(QueryExecuted); ok {
		r.queryExecuted = append(r.queryExecuted, queryExecutedEntry{name, h})
	}
	if h, ok := e.(EventDelivered); ok {
		r.eventDelivered = append(r.eventDelivered, eventDeliveredEntry{name, h})
	}
	if h, ok := e.(EventDeadLettered); ok {
		r.eventDeadLettered = append(r.eventDeadLettered, eventDeadLetteredEntry{name, h})
	}
	if h, ok := e.(CacheHit); ok {
		r.cacheHit = append(r.cacheHit, cacheHitEntry{name, h})
	}
	if h, ok := e.(CacheMiss); ok {
		r.cacheMiss = append(r.cacheMiss, cacheMissEntry{name, h})
	}
	if h, ok := e.(CacheRefreshed); ok {
		r.cacheRefreshed = append(r.cacheRefreshed, cacheRefreshedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension {
	if r == nil {
		return nil
	}
	return r.extensions
}

// ──────────────────────────────────────────────────
// Dispatch event emitters
// ──────────────────────────────────────────────────

// EmitCommandExecuted notifies all extensions that implement CommandExecuted.
func (r *Registry) EmitCommandExecuted(ctx context.Context, cmd *message.Command, res mediator.Result, elapsed time.Duration) {
	if r == nil {
		return
	}
	for _, e := range r.commandExecuted {
		if err := e.hook.OnCommandExecuted(ctx, cmd, res, elapsed); err != nil {
			r.logHookError("OnCommandExecuted", e.name, err)
		}
	}
}

// EmitQueryExecuted notifies all extensions that implement QueryExecuted.
func (r *Registry) EmitQueryExecuted(ctx context.Context, q *message.Query, res mediator.Result, elapsed time.Duration) {
	if r == nil {
		return
	}
	for _, e := range r.queryExecuted {
		if err := e.hook.OnQueryExecuted(ctx, q, res, elapsed); err != nil {
			r.logHookError("OnQueryExecuted", e.name, err)
		}
	}
}

// EmitEventDelivered notifies all extensions that implement EventDelivered.
func (r *Registry) EmitEventDelivered(ctx context.Context, evt *message.Event, subscriber string, elapsed time.Duration) {
	if r == nil {
		return
	}
	for _, e := range r.eventDelivered {
		if err := e.hook.OnEventDelivered(ctx, evt, subscriber, elapsed); err != nil {
			r.logHookError("OnEventDelivered", e.name, err)
		}
	}
}

// EmitEventDeadLettered notifies all extensions that implement EventDeadLettered.
func (r *Registry) EmitEventDeadLettered(ctx context.Context, evt *message.Event, subscriber string, deliveryErr error) {
	if r == nil {
		return
	}
	for _, e := range r.eventDeadLettered {
		if err := e.hook.OnEventDeadLettered(ctx, evt, subscriber, deliveryErr); err != nil {
			r.logHookError("OnEventDeadLettered", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Cache event emitters
// ──────────────────────────────────────────────────

// EmitCacheHit notifies all extensions that implement CacheHit.
func (r *Registry) EmitCacheHit(ctx context.Context, key string, stale bool) {
	if r == nil {
		return
	}
	for _, e := range r.cacheHit {
		if err := e.hook.OnCacheHit(ctx, key, stale); err != nil {
			r.logHookError("OnCacheHit", e.name, err)
		}
	}
}

// EmitCacheMiss notifies all extensions that implement CacheMiss.
func (r *Registry) EmitCacheMiss(ctx context.Context, key string) {
	if r == nil {
		return
	}
	for _, e := range r.cacheMiss {
		if err := e.hook.OnCacheMiss(ctx, key); err != nil {
			r.logHookError("OnCacheMiss", e.name, err)
		}
	}
}

// EmitCacheRefreshed notifies all extensions that implement CacheRefreshed.
func (r *Registry) EmitCacheRefreshed(ctx context.Context, key string, attempt int, refreshErr error) {
	if r == nil {
		return
	}
	for _, e := range r.cacheRefreshed {
		if err := e.hook.OnCacheRefreshed(ctx, key, attempt, refreshErr); err != nil {
			r.logHookError("OnCacheRefreshed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	if r == nil {
		return
	}
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated to the caller.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
