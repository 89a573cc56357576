// Package flows contains the orchestration for every Engine operation.
//
// Each flow function (RunValidate, RunLogin, RunLogout) accepts a typed
// dependency struct and returns a result carrying a failure kind. The root
// package maps kinds to its public error taxonomy, logs, and records metrics.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import tokengate (to avoid import cycles).
//   - Decide caller-facing error codes or messages.
package flows
