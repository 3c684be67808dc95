// Package gymauth is the authorization client of a gym-management front end: it logs
// staff in against a REST backend, persists the session, resolves the user's role from
// the backend role catalog, caches the role's module and privilege grants, and keeps
// that cache in sync by polling.
//
// [Engine] is the public surface, assembled with [Builder]:
//
//	engine, err := gymauth.New().
//		WithBackendURL("https://api.example.com").
//		WithEmbedOptions(gymauth.EmbedOptions{EnablePolling: true, PollingIntervalMs: 60000}).
//		Build()
//
// Engine methods are safe to call from multiple goroutines. Permission decisions
// (HasModuleAccess, HasPrivilege and friends) are synchronous reads of an immutable
// snapshot and fail closed: before the first successful fetch, after logout and for
// unknown modules they return false.
//
// # Architecture boundaries
//
// gymauth wires the leaf packages: session (persistence), roles (catalog), permcache
// (decisions), authsession (login/logout/restore), permsync (polling) and backend
// (transport). Each leaf is usable on its own; none imports gymauth.
//
// # What this package must NOT do
//
//   - Enforce authorization server-side; the backend remains the authority.
//   - Expose Redis clients or store encodings in its public API.
//   - Perform I/O during [Builder.Build].
package gymauth
