// Package limit provides per-message-type and per-tenant admission
// control: token-bucket rate limits and caps on concurrent handlers.
//
// # Per-Type Configuration
//
//	limit.Config{
//	    Type:           "SendEmail",
//	    MaxConcurrency: 5,  // at most 5 SendEmail handlers at once
//	    RateLimit:      10, // 10 messages/s sustained
//	    RateBurst:      20, // bursts up to 20
//	}
//
// Pass configs when building the engine; they are enforced by the
// middleware.Throttle stage of the pipeline:
//
//	engine.Build(cfg,
//	    engine.WithLimits(
//	        limit.Config{Type: "ExportReport", MaxConcurrency: 2},
//	        limit.Config{Type: "SearchUsers", RateLimit: 50, RateBurst: 100},
//	    ),
//	)
//
// # Manager
//
// [Manager] admits or rejects a message at dispatch time. It uses a
// token-bucket rate limiter (golang.org/x/time/rate) and an active-count
// gate for concurrency limits. Caps are checked before any token is
// reserved, and a refused message hands its reserved tokens back. Tenants
// are read from the [TenantKey] metadata field.
//
//	m := limit.NewManager(configs...)
//	if m.Acquire(msgType, tenantID) {
//	    defer m.Release(msgType, tenantID)
//	    // run the handler
//	}
//
// Types without a [Config] are never limited.
package limit
