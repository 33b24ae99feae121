// Package middleware provides the composable pipeline every command,
// query and event delivery runs through.
//
// A [Middleware] wraps the next [Handler] in the chain. Middleware are
// composed with [Chain]; the first middleware in the slice is the
// outermost wrapper, so execution runs in registration order down to the
// handler and unwinds in reverse.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs kind, type, id, duration and outcome
//   - [Recover] — converts panics into mediator.ErrExecution errors
//   - [Timeout] — bounds the downstream context with a deadline
//   - [Tracing] — wraps execution in an OpenTelemetry span
//   - [Metrics] — records duration and outcome instruments
//   - [Retry] — retries failures using a backoff.Strategy
//   - [Validate] — rejects messages before they reach the handler
//   - [RateLimit] — short-circuits when a token bucket is empty
//   - [Correlation] — stamps a correlation id when none is present
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, inv *middleware.Invocation, next middleware.Handler) (any, error) {
//	        // pre-processing
//	        out, err := next(ctx)
//	        // post-processing
//	        return out, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (validation, rate limiting, circuit breaking).
package middleware
