// Package observability provides an OpenTelemetry metrics extension for
// the mediator. The MetricsExtension implements the ext lifecycle hooks to
// record system-wide counters for executed commands and queries, cache
// hits, misses and background refreshes, event deliveries and dead
// letters.
//
// For per-message tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
