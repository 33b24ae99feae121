package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/backoff"
	"github.com/xraph/mediator/cache"
	"github.com/xraph/mediator/command"
	"github.com/xraph/mediator/dlq"
	"github.com/xraph/mediator/event"
	"github.com/xraph/mediator/ext"
	"github.com/xraph/mediator/id"
	"github.com/xraph/mediator/limit"
	"github.com/xraph/mediator/message"
	mw "github.com/xraph/mediator/middleware"
	"github.com/xraph/mediator/observability"
	"github.com/xraph/mediator/query"
	"github.com/xraph/mediator/registry"
	"github.com/xraph/mediator/store"
	"github.com/xraph/mediator/store/memory"
)

const instrumentationName = "github.com/xraph/mediator"

// defaultSweepSchedule is how often the engine-owned memory store drops
// expired cache items.
const defaultSweepSchedule = "@every 1m"

// Engine owns the handler registry, the three buses, the query cache and
// the dead letter queue. Use Build() to create one.
type Engine struct {
	cfg        mediator.Config
	logger     *slog.Logger
	extensions *ext.Registry
	registry   *registry.Registry

	cacheStore cache.Store
	dlqStore   dlq.Store
	ownedStore *memory.Store

	cache      *cache.Cache
	dlqService *dlq.Service
	commands   *command.Bus
	queries    *query.Bus
	events     *event.Bus

	pendingExts   []ext.Extension
	mws           []mw.Middleware
	limitConfigs  []limit.Config
	limits        *limit.Manager
	refreshBO     backoff.Strategy
	sweepSchedule string
	stopped       atomic.Bool

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared by every subsystem.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.pendingExts = append(eng.pendingExts, e)
	}
}

// WithMiddleware appends middleware to the chain shared by all buses. It
// runs inside the default stack, in the order given.
func WithMiddleware(mws ...mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, mws...)
	}
}

// WithLimits registers per-type rate limits and concurrency caps. Types
// not listed have no limits.
func WithLimits(configs ...limit.Config) Option {
	return func(eng *Engine) {
		eng.limitConfigs = append(eng.limitConfigs, configs...)
	}
}

// WithStore uses s for both the query cache and the dead letter queue.
func WithStore(s store.Store) Option {
	return func(eng *Engine) {
		eng.cacheStore = s
		eng.dlqStore = s
	}
}

// WithCacheStore sets the query cache store only.
func WithCacheStore(s cache.Store) Option {
	return func(eng *Engine) { eng.cacheStore = s }
}

// WithDLQStore sets the dead letter store only.
func WithDLQStore(s dlq.Store) Option {
	return func(eng *Engine) { eng.dlqStore = s }
}

// WithRefreshBackoff sets the delay strategy between failed background
// refresh attempts.
func WithRefreshBackoff(s backoff.Strategy) Option {
	return func(eng *Engine) { eng.refreshBO = s }
}

// WithSweepSchedule sets the cron schedule of the memory store the engine
// creates when no store is given. An empty schedule disables sweeping.
func WithSweepSchedule(schedule string) Option {
	return func(eng *Engine) { eng.sweepSchedule = schedule }
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider. Both the metrics
// middleware and the observability extension use it. If not set, the
// global provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// Build creates an Engine from cfg. Stores that are not given default to
// one in-memory store owned and closed by the engine.
func Build(cfg mediator.Config, opts ...Option) (*Engine, error) {
	eng := &Engine{
		cfg:           cfg,
		logger:        slog.Default(),
		registry:      registry.New(),
		sweepSchedule: defaultSweepSchedule,
	}
	for _, opt := range opts {
		opt(eng)
	}

	eng.extensions = ext.NewRegistry(eng.logger)
	for _, e := range eng.pendingExts {
		if e == nil {
			return nil, fmt.Errorf("mediator: nil extension")
		}
		eng.extensions.Register(e)
	}
	eng.pendingExts = nil

	if eng.cacheStore == nil || eng.dlqStore == nil {
		ms := memory.New()
		if eng.sweepSchedule != "" {
			if err := ms.StartSweeper(eng.sweepSchedule); err != nil {
				return nil, fmt.Errorf("mediator: memory store: %w", err)
			}
		}
		eng.ownedStore = ms
		if eng.cacheStore == nil {
			eng.cacheStore = ms
		}
		if eng.dlqStore == nil {
			eng.dlqStore = ms
		}
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName + "/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Default stack: recover → correlation → tracing → metrics → logging,
	// then throttle when limits are configured.
	defaultMws := []mw.Middleware{
		mw.Recover(eng.logger),
		mw.Correlation(),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
	}
	if len(eng.limitConfigs) > 0 {
		eng.limits = limit.NewManager(eng.limitConfigs...)
		defaultMws = append(defaultMws, mw.Throttle(eng.limits))
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	cacheOpts := []cache.Option{
		cache.WithLogger(eng.logger),
		cache.WithExtensions(eng.extensions),
	}
	if eng.refreshBO != nil {
		cacheOpts = append(cacheOpts, cache.WithRefreshBackoff(eng.refreshBO))
	}
	eng.cache = cache.New(eng.cacheStore, cfg, cacheOpts...)
	eng.dlqService = dlq.NewService(eng.dlqStore)

	eng.commands = command.New(eng.registry,
		command.WithMiddleware(allMws...),
		command.WithLogger(eng.logger),
		command.WithExtensions(eng.extensions),
	)
	eng.queries = query.New(eng.registry, eng.cache,
		query.WithMiddleware(allMws...),
		query.WithLogger(eng.logger),
		query.WithExtensions(eng.extensions),
	)
	eng.events = event.New(eng.registry,
		event.WithMiddleware(allMws...),
		event.WithDLQ(eng.dlqService),
		event.WithLogger(eng.logger),
		event.WithExtensions(eng.extensions),
		event.WithConcurrency(cfg.EventConcurrency),
	)

	return eng, nil
}

// ──────────────────────────────────────────────────
// Registration
// ──────────────────────────────────────────────────

// RegisterCommandHandler binds h to the command type typ.
func (eng *Engine) RegisterCommandHandler(typ string, h registry.CommandHandler) error {
	return eng.registry.RegisterCommand(typ, h)
}

// RegisterQueryHandler binds h to the query type typ.
func (eng *Engine) RegisterQueryHandler(typ string, h registry.QueryHandler) error {
	return eng.registry.RegisterQuery(typ, h)
}

// RegisterEventSubscriber appends h to the subscribers of typ.
func (eng *Engine) RegisterEventSubscriber(typ string, h registry.EventHandler) error {
	return eng.registry.Subscribe(typ, h)
}

// ──────────────────────────────────────────────────
// Dispatch
// ──────────────────────────────────────────────────

// Execute runs cmd through the command bus.
func (eng *Engine) Execute(ctx context.Context, cmd *message.Command) mediator.Result {
	return eng.commands.Execute(ctx, cmd)
}

// Query answers q through the query bus and its cache.
func (eng *Engine) Query(ctx context.Context, q *message.Query) mediator.Result {
	return eng.queries.Execute(ctx, q)
}

// Publish fans evt out to its subscribers in the background.
func (eng *Engine) Publish(ctx context.Context, evt *message.Event) error {
	return eng.events.Publish(ctx, evt)
}

// PublishSync delivers evt and waits for every subscriber.
func (eng *Engine) PublishSync(ctx context.Context, evt *message.Event) ([]event.Delivery, error) {
	return eng.events.PublishSync(ctx, evt)
}

// InvalidateCache drops the cached result of queryType under key, or every
// cached result of queryType when key is empty.
func (eng *Engine) InvalidateCache(ctx context.Context, queryType, key string) error {
	return eng.queries.InvalidateCache(ctx, queryType, key)
}

// ReplayDLQ redelivers a dead-lettered event to the subscriber that failed
// it and marks the entry replayed on success.
func (eng *Engine) ReplayDLQ(ctx context.Context, entryID id.DLQID) error {
	return eng.dlqService.Replay(ctx, entryID, eng.events.Redeliver)
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Stop drains in-flight event deliveries, cancels background refreshes
// and pending fetches, notifies Shutdown extensions and closes the store
// the engine created. Waiting is bounded by Config.ShutdownTimeout. Calls
// after the first return nil.
func (eng *Engine) Stop(ctx context.Context) error {
	if !eng.stopped.CompareAndSwap(false, true) {
		return nil
	}
	if eng.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.cfg.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	if err := eng.events.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := eng.cache.Close(ctx); err != nil {
		errs = append(errs, err)
	}

	eng.extensions.EmitShutdown(ctx)

	if eng.ownedStore != nil {
		if err := eng.ownedStore.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		eng.logger.Error("engine stop error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Config returns the configuration the engine was built with.
func (eng *Engine) Config() mediator.Config { return eng.cfg }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the handler registry.
func (eng *Engine) Registry() *registry.Registry { return eng.registry }

// Commands returns the command bus.
func (eng *Engine) Commands() *command.Bus { return eng.commands }

// Queries returns the query bus.
func (eng *Engine) Queries() *query.Bus { return eng.queries }

// Events returns the event bus.
func (eng *Engine) Events() *event.Bus { return eng.events }

// Cache returns the query cache.
func (eng *Engine) Cache() *cache.Cache { return eng.cache }

// DLQService returns the DLQ service for inspection and replay.
func (eng *Engine) DLQService() *dlq.Service { return eng.dlqService }

// Limits returns the admission manager, or nil if no limits were
// configured.
func (eng *Engine) Limits() *limit.Manager { return eng.limits }
