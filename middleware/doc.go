// Package middleware adapts a goSession.Engine to net/http.
//
// # Transports
//
//   - [Authorize] attaches the derived Authorization header.
//   - [RetryOnUnauthorized] refreshes an OAuth access token once on 401 and
//     replays the request.
//
// # Guards
//
//   - [Guard] gates a handler on the session and, optionally, a permission key.
//   - [RequireAuthenticated] gates a handler on the session alone.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Header derivation
// and token refresh stay in the Engine.
//
// # What this package must NOT do
//
//   - Store tokens or build the Authorization header itself.
//   - Mutate the credential store except through Engine.RefreshOAuthToken.
//   - Retry more than once per request.
package middleware
