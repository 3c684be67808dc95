// Package session persists the authenticated identity and its two bearer tokens across
// process restarts.
//
// # Storage layout
//
// Every backend stores three entries: identity (JSON [Identity]), accessToken and
// refreshToken. [RedisStore] namespaces them as prefix:identity and so on and writes
// them in one MULTI/EXEC; [FileStore] keeps a single 0600 JSON document replaced by
// rename; [MemoryStore] is process-local.
//
// A record that is partially present or fails validation is reported as
// [ErrInvalidSessionData]; callers wipe it entirely.
//
// # Architecture boundaries
//
// This package does NOT decode tokens, resolve roles, or evaluate permissions.
//
// # What this package must NOT do
//
//   - Import gymauth, backend, permcache, or authsession (no upward imports).
//   - Log token values.
package session
