// Package engine wires the mediator subsystems together and provides the
// application-level API for registering handlers and dispatching
// messages.
//
// The engine package sits above every subsystem package (registry,
// middleware, command, query, cache, event, dlq) and below the
// application layer. It is the only place that knows how they fit.
//
// # Building an Engine
//
//	eng, err := engine.Build(mediator.DefaultConfig(),
//	    engine.WithLogger(logger),
//	    engine.WithStore(redisstore.New(client)),
//	    engine.WithExtension(auditExt),
//	    engine.WithMiddleware(middleware.Timeout(5*time.Second)),
//	)
//
// # Registering Handlers
//
//	_ = eng.RegisterCommandHandler("CreateUser", registry.CommandFunc(createUser))
//	_ = eng.RegisterQueryHandler("GetUser", registry.QueryFunc(getUser))
//	_ = eng.RegisterEventSubscriber("UserCreated", registry.EventFunc("welcome-mail", sendWelcome))
//
// # Dispatching
//
//	res := eng.Execute(ctx, message.NewCommand("CreateUser", input))
//	res = eng.Query(ctx, message.NewQuery("GetUser", "GetUser:42", req,
//	    message.WithCacheTime(time.Minute),
//	))
//	err = eng.Publish(ctx, message.NewEvent("UserCreated", user))
//
// # Options
//
//   - [WithLogger] — set the shared slog logger
//   - [WithExtension] — register a lifecycle extension
//   - [WithMiddleware] — add middleware to the shared chain
//   - [WithLimits] — per-type rate limits and concurrency caps
//   - [WithStore], [WithCacheStore], [WithDLQStore] — choose persistence
//   - [WithRefreshBackoff] — delays between failed background refreshes
//   - [WithSweepSchedule] — sweep schedule of the default memory store
//   - [WithTracerProvider], [WithMeterProvider] — OpenTelemetry providers
package engine
