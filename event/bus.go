// Package event provides the event bus. An event fans out to every
// subscriber registered for its type at the moment it is published;
// subscribers added later never see it.
//
// Each delivery runs through the middleware pipeline on its own. A
// subscriber that fails or panics does not affect the others: the failed
// delivery is logged, recorded in the dead letter queue as
// {type, subscriber, error} and not retried by the bus. Retries, if any,
// come from middleware.Retry in the pipeline.
//
// Subscribers for one event may run concurrently and share the event
// value; they must treat it as read-only.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/dlq"
	"github.com/xraph/mediator/ext"
	"github.com/xraph/mediator/message"
	"github.com/xraph/mediator/middleware"
	"github.com/xraph/mediator/registry"
)

// Status is the outcome of one delivery.
type Status string

// Delivery statuses.
const (
	StatusHandled      Status = "handled"
	StatusDeadLettered Status = "dead-lettered"
)

// Delivery reports how one subscriber handled an event.
type Delivery struct {
	Subscriber string        `json:"subscriber"`
	Status     Status        `json:"status"`
	Err        error         `json:"-"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Bus publishes events to their subscribers.
type Bus struct {
	registry    *registry.Registry
	pipeline    middleware.Middleware
	dlq         *dlq.Service
	logger      *slog.Logger
	extensions  *ext.Registry
	concurrency int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// WithMiddleware sets the pipeline applied to every delivery.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(b *Bus) { b.pipeline = middleware.Chain(mws...) }
}

// WithDLQ sets the dead letter queue. Without one, failed deliveries are
// only logged.
func WithDLQ(svc *dlq.Service) Option {
	return func(b *Bus) { b.dlq = svc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithExtensions sets the registry notified of deliveries.
func WithExtensions(r *ext.Registry) Option {
	return func(b *Bus) { b.extensions = r }
}

// WithConcurrency bounds concurrent deliveries per event. Values below 1
// mean unbounded.
func WithConcurrency(n int) Option {
	return func(b *Bus) { b.concurrency = n }
}

// New creates an event bus resolving subscribers from reg.
func New(reg *registry.Registry, opts ...Option) *Bus {
	b := &Bus{
		registry:    reg,
		logger:      slog.Default(),
		concurrency: mediator.DefaultConfig().EventConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish snapshots the subscribers of evt and delivers to them in the
// background. It returns once the deliveries are scheduled; cancelling
// ctx afterwards does not cancel them. Publishing to a type without
// subscribers is not an error.
func (b *Bus) Publish(ctx context.Context, evt *message.Event) error {
	if err := validate(evt); err != nil {
		return err
	}
	subs := b.registry.Subscribers(evt.Type)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return mediator.ErrBusClosed
	}
	b.wg.Add(1)
	b.mu.RUnlock()

	dctx := context.WithoutCancel(ctx)
	go func() {
		defer b.wg.Done()
		b.fanOut(dctx, evt, subs)
	}()
	return nil
}

// PublishSync delivers evt to its current subscribers and waits for all
// of them. The deliveries are returned in subscription order.
func (b *Bus) PublishSync(ctx context.Context, evt *message.Event) ([]Delivery, error) {
	if err := validate(evt); err != nil {
		return nil, err
	}
	subs := b.registry.Subscribers(evt.Type)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, mediator.ErrBusClosed
	}
	b.wg.Add(1)
	b.mu.RUnlock()
	defer b.wg.Done()

	return b.fanOut(ctx, evt, subs), nil
}

func validate(evt *message.Event) error {
	if evt == nil {
		return mediator.ErrNilMessage
	}
	if evt.Type == "" {
		return mediator.ErrInvalidType
	}
	return nil
}

func (b *Bus) fanOut(ctx context.Context, evt *message.Event, subs []registry.EventHandler) []Delivery {
	deliveries := make([]Delivery, len(subs))

	var g errgroup.Group
	if b.concurrency > 0 {
		g.SetLimit(b.concurrency)
	}
	for i, h := range subs {
		g.Go(func() error {
			deliveries[i] = b.deliver(ctx, evt, h)
			return nil
		})
	}
	_ = g.Wait()
	return deliveries
}

func (b *Bus) deliver(ctx context.Context, evt *message.Event, h registry.EventHandler) Delivery {
	start := time.Now()
	err := b.invoke(ctx, evt, h)
	d := Delivery{Subscriber: h.Name(), Status: StatusHandled, Elapsed: time.Since(start)}

	if err != nil {
		d.Status = StatusDeadLettered
		d.Err = err
		b.deadLetter(ctx, evt, d.Subscriber, err)
	}
	return d
}

func (b *Bus) invoke(ctx context.Context, evt *message.Event, h registry.EventHandler) error {
	inv := middleware.NewInvocation(evt)
	inv.Subscriber = h.Name()
	_, err := middleware.Run(ctx, b.pipeline, inv, func(ctx context.Context) (any, error) {
		return nil, h.HandleEvent(ctx, evt)
	})
	if err == nil {
		b.extensions.EmitEventDelivered(ctx, evt, inv.Subscriber, inv.Elapsed())
	}
	return err
}

func (b *Bus) deadLetter(ctx context.Context, evt *message.Event, subscriber string, err error) {
	b.logger.Warn("event delivery dead-lettered",
		slog.String("type", evt.Type),
		slog.String("event_id", evt.ID.String()),
		slog.String("subscriber", subscriber),
		slog.String("error", err.Error()),
	)
	if b.dlq != nil {
		if pushErr := b.dlq.Push(ctx, evt, subscriber, err); pushErr != nil {
			b.logger.Error("failed to record dead letter",
				slog.String("type", evt.Type),
				slog.String("subscriber", subscriber),
				slog.String("error", pushErr.Error()),
			)
		}
	}
	b.extensions.EmitEventDeadLettered(ctx, evt, subscriber, err)
}

// Redeliver hands evt to the single subscriber named subscriber. A
// failure is returned to the caller and not dead-lettered again. It
// satisfies dlq.DeliverFunc.
func (b *Bus) Redeliver(ctx context.Context, evt *message.Event, subscriber string) error {
	for _, h := range b.registry.Subscribers(evt.Type) {
		if h.Name() == subscriber {
			return b.invoke(ctx, evt, h)
		}
	}
	return fmt.Errorf("%w: %q on %q", mediator.ErrNoSubscriber, subscriber, evt.Type)
}

// Stop rejects further publishes and waits for in-flight deliveries to
// finish or for ctx to end.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event: stop: %w", ctx.Err())
	}
}
