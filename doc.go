// Package goSession manages client-side authentication state for an instance
// API client: password login, OAuth2 authorization-code login, token refresh,
// profile and permission derivation, and the coordinated reset of every
// session-dependent state container on logout.
//
// Engine methods are safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config], and
// value types (MetricsSnapshot, AuditEvent, ExchangeError). The credential store
// lives in session, protocol details in oauth, and orchestration in
// internal/flows. Collaborators plug in through [Dispatcher], [Navigator] and
// [Resettable].
//
// # What this package must NOT do
//
//   - Log or audit secrets (passwords, tokens, client secrets).
//   - Spawn goroutines other than the audit dispatcher's writer.
//   - Treat a failed ambient check or a failed logout call as an error.
//   - Import any sub-package that re-imports goSession (no import cycles).
package goSession
