// Package session holds the client-side credential store and its Redis-backed
// persistence.
//
// # Credential store
//
// [State] is the single owned session context: authentication mode, the active
// credential variant, profile, permission set and scoped tokens. Every mutation
// takes one lock, so readers never observe a half-applied profile or a permission
// mapping that is still being rebuilt.
//
// # Generations
//
// Each [State.Reset] advances a generation counter. Network results captured
// under an older generation are rejected by the conditional apply methods with
// [ErrStaleGeneration], so a profile or token response that lands after a
// logout cannot resurrect the previous user.
//
// # Binary encoding
//
// Persisted [Credentials] use a compact versioned binary format. Decoders accept
// every version they know; encoders always write the current one.
//
// # Architecture boundaries
//
// This package owns [State], [Store] (Redis operations) and the [Credentials]
// record. It does NOT talk to the instance API or decide when to reset; those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goSession or any transport package (no upward imports).
//   - Log or expose tokens and client secrets.
package session
