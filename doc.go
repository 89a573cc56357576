// Package tokengate issues signed session tokens at login, validates them on
// every protected call, and revokes them on logout so that a revoked token
// never authorizes access again.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]:
//
//	engine, err := tokengate.New().
//		WithConfig(cfg).
//		WithRevocationStore(store).
//		WithUserDirectory(dir).
//		Build()
//
// # Architecture boundaries
//
// tokengate is the public surface. It exposes [Engine], [Builder], [Config],
// the [Error] taxonomy, and value types. The token codec lives in jwt,
// revocation backends in revocation, and transport adapters in middleware.
// Flow orchestration and audit dispatch live under internal/.
//
// # Failure model
//
// Every failure is an [*Error] carrying a caller-facing [Code] and an
// internal [Reason]. Validation fails closed: if the revocation store cannot
// answer, the token is refused with [ErrStoreUnavailable].
//
// # What this package must NOT do
//
//   - Treat an unreachable revocation store as "not revoked".
//   - Reveal to callers whether a token was rejected for its signature, its
//     expiry, or its revocation.
//   - Import any sub-package that re-imports tokengate (no import cycles).
package tokengate
