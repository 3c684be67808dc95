// Package backend is the REST transport to the gym backend: credential exchange,
// logout notification, the role catalog, and per-role permission sets.
//
// The backend has shipped several response layouts for the same endpoints over time.
// This package normalizes every recognized layout into one canonical record
// ([LoginResult], []roles.Role, permission.Payload) and rejects anything else with a
// typed error, so callers never branch on wire shape.
//
// Every request carries an X-Request-ID header and, when a token source is set and
// yields a token, an Authorization bearer header.
//
// # What this package must NOT do
//
//   - Verify token signatures. Tokens are decoded only to read identity claims.
//   - Retry requests. Callers own retry policy.
//   - Log token values or secrets.
package backend
