// Package api is the instance HTTP client used by the Engine: base-URL
// resolution, Authorization header injection, form and JSON bodies, and raw
// response capture.
//
// # Architecture boundaries
//
// The client knows nothing about sessions. The header comes from a
// [HeaderSource] supplied by the owner, so the credential store stays the single
// place where the header format is decided.
//
// # What this package must NOT do
//
//   - Interpret response bodies beyond reading them.
//   - Retry requests.
//   - Import goSession.
package api
