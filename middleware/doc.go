// Package middleware puts the session check in front of protected operations.
//
// # Gates
//
//   - [Guard]: transport-neutral generic wrapper for any [ProtectedFunc].
//   - [HTTPGuard]: net/http middleware reading X-Session-Token or Authorization.
//   - [UnaryServerInterceptor]: gRPC unary interceptor with public-method allow list.
//
// Every gate extracts a token, calls Validator.Validate, and on success
// attaches the identity with tokengate.WithIdentity before calling the
// wrapped operation exactly once. On failure the operation is not called.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to the Validator).
//   - Access revocation storage.
//   - Tell callers which token check failed beyond the taxonomy code.
package middleware
