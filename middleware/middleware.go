package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/message"
)

// Handler is the remainder of the chain, ending in the message handler.
type Handler func(ctx context.Context) (any, error)

// Middleware wraps a Handler with cross-cutting logic. It receives the
// invocation being executed and the next handler to call.
type Middleware func(ctx context.Context, inv *Invocation, next Handler) (any, error)

// Invocation is the per-execution pipeline context. One is created for
// every command or query execution and for every event delivery.
type Invocation struct {
	// Message is the in-flight message.
	Message message.Message

	// Metadata holds the correlation fields. It starts as a copy of the
	// message's metadata and reaches every middleware and the handler
	// unchanged; middleware may add keys.
	Metadata message.Metadata

	// Subscriber names the event subscriber for event deliveries.
	Subscriber string

	// Start is taken when the bus begins the execution.
	Start time.Time

	// HandlerElapsed is set by the bus once the handler itself returns.
	HandlerElapsed time.Duration

	// Attempt is the 1-indexed execution attempt, advanced by Retry.
	Attempt int
}

// NewInvocation creates an invocation for msg starting now.
func NewInvocation(msg message.Message) *Invocation {
	md := msg.MessageMetadata().Clone()
	if md == nil {
		md = make(message.Metadata)
	}
	return &Invocation{
		Message:  msg,
		Metadata: md,
		Start:    time.Now(),
		Attempt:  1,
	}
}

// Elapsed returns the time since Start.
func (inv *Invocation) Elapsed() time.Duration { return time.Since(inv.Start) }

type invocationKey struct{}

// WithInvocation returns a context carrying inv.
func WithInvocation(ctx context.Context, inv *Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFrom returns the invocation carried by ctx.
func InvocationFrom(ctx context.Context) (*Invocation, bool) {
	inv, ok := ctx.Value(invocationKey{}).(*Invocation)
	return inv, ok
}

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, retry) executes as:
//
//	logging → recover → retry → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, inv *Invocation, next Handler) (any, error) {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (any, error) {
				return mw(ctx, inv, prev)
			}
		}
		return h(ctx)
	}
}

// Only applies mw to the given message kinds and passes everything else
// straight through.
func Only(mw Middleware, kinds ...message.Kind) Middleware {
	return func(ctx context.Context, inv *Invocation, next Handler) (any, error) {
		for _, k := range kinds {
			if inv.Message.Kind() == k {
				return mw(ctx, inv, next)
			}
		}
		return next(ctx)
	}
}

// Run threads inv through mw and then handler. It is the bus boundary:
// the handler's own duration is recorded on inv.HandlerElapsed, and a
// panic anywhere in the chain comes back as a mediator.ErrExecution error.
// A nil mw runs the handler directly.
func Run(ctx context.Context, mw Middleware, inv *Invocation, handler Handler) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: panic in %s %s: %v", mediator.ErrExecution,
				inv.Message.Kind(), inv.Message.MessageType(), r)
		}
	}()

	ctx = WithInvocation(ctx, inv)
	terminal := func(ctx context.Context) (any, error) {
		start := time.Now()
		defer func() { inv.HandlerElapsed = time.Since(start) }()
		return handler(ctx)
	}
	if mw == nil {
		return terminal(ctx)
	}
	return mw(ctx, inv, terminal)
}
