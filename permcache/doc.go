// Package permcache is the authorization decision engine. It holds one immutable
// [Snapshot] of the active role's accessible modules and grants, answers synchronous
// decision queries against it, and owns the fetch, refresh and compare lifecycle.
//
// # Fail closed
//
// Every decision query returns false when no snapshot is loaded. Callers never need to
// tell "not yet initialized" apart from "not authorized".
//
// # Stale responses
//
// Each fetch records the cache generation and a request sequence number when it
// starts. A response is discarded if the cache was cleared or switched role while it
// was in flight, or if a newer response was already applied. A response for a previous
// identity therefore never populates the cache.
//
// # Listeners
//
// Listeners run after every successful Initialize or Refresh, once each, in
// registration order, outside any lock. A panicking listener is recovered and logged.
package permcache
