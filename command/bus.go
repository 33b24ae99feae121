// Package command provides the command bus. A command has exactly one
// handler; the bus resolves it, runs it once through the middleware
// pipeline and reports the outcome as a mediator.Result.
//
// The bus never caches and never retries. Retries, if wanted, come from
// middleware.Retry in the pipeline.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/ext"
	"github.com/xraph/mediator/message"
	"github.com/xraph/mediator/middleware"
	"github.com/xraph/mediator/registry"
)

// Bus dispatches commands to their registered handler.
type Bus struct {
	registry   *registry.Registry
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

// New creates a command bus resolving handlers from reg.
func New(reg *registry.Registry, opts ...Option) *Bus {
	b := &Bus{registry: reg, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute runs cmd through the pipeline and its handler. It never panics
// and never returns an error directly: failures are reported in the
// Result with their ErrorCode. A missing handler yields
// HANDLER_NOT_FOUND without touching the pipeline.
func (b *Bus) Execute(ctx context.Context, cmd *message.Command) mediator.Result {
	if cmd == nil {
		return mediator.Fail(mediator.ErrNilMessage)
	}
	start := time.Now()

	h, ok := b.registry.Command(cmd.Type)
	if !ok {
		res := mediator.Fail(fmt.Errorf("%w: command %q", mediator.ErrHandlerNotFound, cmd.Type))
		b.extensions.EmitCommandExecuted(ctx, cmd, res, time.Since(start))
		return res
	}

	inv := middleware.NewInvocation(cmd)
	data, err := middleware.Run(ctx, b.pipeline, inv, func(ctx context.Context) (any, error) {
		return h.HandleCommand(ctx, cmd)
	})

	var res mediator.Result
	if err != nil {
		res = mediator.Fail(err)
		b.logger.Debug("command failed",
			slog.String("type", cmd.Type),
			slog.String("command_id", cmd.ID.String()),
			slog.String("error_code", string(res.ErrorCode)),
			slog.String("error", err.Error()),
		)
	} else {
		res = mediator.OK(data)
	}
	b.extensions.EmitCommandExecuted(ctx, cmd, res, inv.Elapsed())
	return res
}
