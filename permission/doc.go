// Package permission provides the grant algebra used by gymauth authorization checks:
// module/privilege grants, an interning registry that assigns each name a stable bit,
// and immutable bitset-backed sets built on top of it.
//
// # Interning
//
// A [Registry] maps names to bit positions. Bits are assigned on first sight and are
// stable for the lifetime of the registry, so two sets built from the same registry can
// be compared with a word-wise equality check regardless of the order the backend
// returned their members in.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O.
//
// # What this package must NOT do
//
//   - Access the network, session storage, or the role directory.
//   - Import gymauth, backend, permcache, or authsession.
//   - Mutate a [Set] after it has been built.
package permission
