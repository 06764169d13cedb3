// Package oauth implements the client half of the instance's OAuth2 protocol:
// dynamic app registration, the authorization URL, and the authorization-code
// and refresh-token grants.
//
// The token endpoint expects multipart/form-data bodies, which golang.org/x/oauth2
// does not produce, so the grants are issued directly while tokens are still
// surfaced as [oauth2.Token] values. The authorization URL is built by
// [oauth2.Config.AuthCodeURL].
//
// # Architecture boundaries
//
// The package is stateless. It never reads or writes the credential store;
// callers pass the registered [App] and refresh token in and receive the new
// token back. Deciding whether a result is still current is the caller's job.
//
// # What this package must NOT do
//
//   - Retry failed exchanges.
//   - Import goSession or session.
package oauth
