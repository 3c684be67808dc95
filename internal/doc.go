// Package internal holds helpers that are private to gymauth.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - fakebackend: in-process HTTP backend used by tests, the demo and the load test
//
// # What this package must NOT do
//
//   - Export types that appear in the public gymauth API.
package internal
