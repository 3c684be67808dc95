// Package middleware exposes HTTP route guards backed by gymauth.Engine permission
// decisions, for embedding applications that serve their UI from Go.
//
// # Guards
//
//   - [RequireSession]: rejects requests while nobody is logged in.
//   - [RequireModule]: module access check.
//   - [RequireAll] and [RequireAny]: privilege checks on one module.
//   - [Guard]: the shared core taking an arbitrary decision function.
//
// Guards answer 401 when logged out and 403 when the decision is false. Every guarded
// response carries X-Permissions-Stale: true while the cached permissions are stale.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authorization logic itself; all decisions are delegated to the Engine's cache.
//
// # What this package must NOT do
//
//   - Call the backend (decisions are synchronous cache reads).
//   - Cache decisions across requests.
package middleware
