// Package jwt inspects legacy session tokens obtained by password login.
//
// The client never holds the server's signing key, so tokens are parsed without
// signature verification. Inspection is only used to decide whether a persisted
// token is still worth restoring; the server remains the authority on validity.
//
// # What this package must NOT do
//
//   - Treat an inspected token as authenticated.
//   - Import goSession or session.
package jwt
