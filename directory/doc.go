// Package directory provides tokengate.UserDirectory implementations: a
// SQLite-backed directory with bcrypt password hashes and registration, and
// an in-memory directory for tests and demos.
package directory
