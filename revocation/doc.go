// Package revocation records session tokens that have been logged out and
// answers whether a token has been revoked.
//
// Entries are keyed by TokenID, the hex SHA-256 of the raw token string, so a
// token can be revoked without being verified and raw tokens never reach the
// backend. Revoke is idempotent and the first write wins. Every backend
// failure is returned wrapped in ErrUnavailable; callers treat it as a reason
// to refuse access, never as "not revoked".
//
// Backends:
//   - MemoryStore: process-local map, for tests and single-process setups.
//   - RedisStore: SET NX with a TTL derived from the token expiry.
//   - SQLiteStore: database/sql with mattn/go-sqlite3.
//   - PostgresStore: pgx v5 pool.
//
// Stores that implement Pruner can be swept by a Janitor.
package revocation
