// Package internal holds packages private to goSession.
//
// # Sub-packages
//
//   - api — instance HTTP client (base URL resolution, header injection, raw responses)
//   - flows — pure-function orchestrators for every Engine operation
//   - fakeinstance — in-process instance used by tests, the CLI demo and the example
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
//   - Be imported by any package outside the goSession module.
package internal
