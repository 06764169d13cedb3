// Package permission provides the server-declared permission mapping held by the
// credential store and a registry of the keys the client knows about.
//
// # Reset skeleton vs de-authentication
//
// A full reset restores every registered key with a false value (the skeleton).
// De-authentication empties the mapping entirely. The two are intentionally not
// the same value; callers that compare them must not assume equality.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. The session
// package owns the live [Set]; the root package consults it to gate dependent
// fetches.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goSession or session.
package permission
