// Package authsession orchestrates login, logout, session restore and the post-login
// redirect.
//
// # Login ordering
//
// Tokens are persisted and held in memory before any authenticated call, because the
// permission fetch needs them. The identity counts as logged in only after its role
// resolves to a source-of-truth catalog entry and its permissions load; any failure
// after the tokens were stored wipes the store and clears the permission cache.
//
// A restored session is more forgiving: a fallback role is accepted as degraded, and a
// failed permission load leaves the identity active with a fail-closed cache so the
// polling loop can recover it.
package authsession
