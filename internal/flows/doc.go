// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunPasswordLogin, RunFetchProfile, RunCheck, RunLogout,
// RunOAuthCallback, RunRefresh, etc.) accepts a typed dependency struct and
// returns a result struct describing what happened. The Engine maps results to
// errors, metrics, audit events and log lines.
//
// # Architecture boundaries
//
// Flow functions coordinate the instance API client, the OAuth client, the
// credential store and the reset broadcast. They do NOT own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
//   - Log; flows report through result structs and the optional Warn hook.
package flows
