// Package mediator is an in-process message bus for CQRS-style
// applications. It routes three kinds of message through a configurable
// middleware pipeline:
//
//   - Commands mutate state and are handled by exactly one handler.
//   - Queries read state, are handled by exactly one handler, and may be
//     cached with stale-while-revalidate semantics and single-flight
//     deduplication per cache key.
//   - Events notify zero or more subscribers. Failed deliveries end in a
//     dead-letter channel.
//
// # Quick Start
//
//	eng, err := engine.Build(mediator.DefaultConfig(),
//	    engine.WithLogger(logger),
//	    engine.WithMiddleware(middleware.Timeout(2*time.Second)),
//	)
//	_ = eng.RegisterQueryHandler("GetOrder", registry.QueryFunc(getOrder))
//
//	res := eng.Query(ctx, message.NewQuery("GetOrder", "GetOrder:o1", req,
//	    message.WithCacheTime(5*time.Second),
//	    message.WithStaleTime(2*time.Second),
//	))
//
// # Architecture
//
// Each subsystem lives in its own package (registry, middleware, command,
// query, cache, event, dlq). The engine package is the composition root:
// handlers are registered explicitly at start-up, there is no reflection
// based discovery and no package-level state.
//
// Handler failures never escape a bus. They are normalised into a
// [Result] carrying an [ErrorCode].
package mediator
