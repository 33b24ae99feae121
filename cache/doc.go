// Package cache implements the query cache behind the query bus.
//
// A [Cache] sits in front of an injected [Store] and adds three things a
// plain key/value store cannot provide on its own:
//
//   - Single-flight: concurrent fetches for the same key share one call to
//     the fetcher. A waiter whose context ends stops waiting but never
//     cancels the shared fetch.
//   - Stale-while-revalidate: an entry past its StaleAt but before its
//     ExpiresAt is served immediately while exactly one background refresh
//     runs for the key.
//   - Failure fallback: when a fetch fails and the store still retains an
//     entry for the key (even an expired one), that entry is served as
//     stale instead of the error.
//
// Per-key state (pending fetches and refresh handles) lives in lock
// stripes selected by hashing the key. Every check-and-act on a key,
// including the store reads and writes, happens under that key's stripe
// lock, so [Cache.Invalidate] removes the entry, the refresh handle and
// the pending fetch atomically with respect to concurrent fetches.
//
// Background refreshes are owned by the cache. Each one is a timer held in
// the stripe alongside the key; it is stopped on invalidate, reset and
// [Cache.Close], and Close waits for anything already running. An attempt
// that is already fetching when the key is invalidated finishes for the
// callers that joined it, but its result is discarded. Only Close cancels
// a running attempt. Fetchers can detect refresh attempts with
// [IsRefresh].
package cache
