// Package roles provides the role catalog used to resolve a numeric role identifier
// into a named role with a landing route.
//
// Every role carries a [Provenance]. Roles fetched from the backend are tagged
// [SourceOfTruth]; when the backend is unreachable or returns a malformed catalog the
// [Directory] substitutes the built-in [FallbackRoles] tagged [Fallback] and reports a
// warning wrapping [ErrUnavailable]. Callers decide how much trust a fallback role earns.
//
// # Architecture boundaries
//
// The directory depends on a [Fetcher] for I/O and holds no session state. It does NOT
// evaluate permissions or decide whether a fallback role is acceptable.
package roles
