// Package ext defines the extension system for the mediator.
//
// Extensions are notified of lifecycle events and can react to them:
// recording metrics, writing audit logs, forwarding dead letters.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnCacheMiss(ctx context.Context, key string) error {
//	    log.Printf("cache miss for %s", key)
//	    return nil
//	}
//
// # Dispatch Hooks
//
//   - [CommandExecuted] — a command finished, successfully or not
//   - [QueryExecuted] — a query finished, with its cache flags
//   - [EventDelivered] — one subscriber handled an event
//   - [EventDeadLettered] — one subscriber failed and the delivery was dead-lettered
//
// # Cache Hooks
//
//   - [CacheHit] — a query was answered from the cache (fresh or stale)
//   - [CacheMiss] — a query had to run its handler
//   - [CacheRefreshed] — a background refresh attempt finished
//
// # Other Hooks
//
//   - [Shutdown] — the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hooks may be called from
// several goroutines at once; extensions must be safe for concurrent use.
package ext
