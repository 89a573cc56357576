package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of *pgxpool.Pool used by PostgresStore.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresSchema creates the table used by PostgresStore.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS revoked_tokens (
	token_id   TEXT PRIMARY KEY,
	revoked_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NULL
);
CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires_at ON revoked_tokens(expires_at);
`

const (
	pgInsertRevoked = `INSERT INTO revoked_tokens (token_id, revoked_at, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (token_id) DO NOTHING`
	pgSelectRevoked = `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_id = $1)`
	pgPruneRevoked  = `DELETE FROM revoked_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`
)

// PostgresStore persists entries through a pgx pool.
type PostgresStore struct {
	pool  PgxPool
	grace time.Duration
}

// NewPostgresStore wraps pool. grace <= 0 selects DefaultGrace.
func NewPostgresStore(pool PgxPool, grace time.Duration) *PostgresStore {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &PostgresStore{pool: pool, grace: grace}
}

// Migrate applies PostgresSchema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("creating revoked_tokens: %w", err)
	}
	return nil
}

// Revoke inserts the entry; a duplicate TokenID is ignored.
func (s *PostgresStore) Revoke(ctx context.Context, entry Entry) error {
	var expiresAt *time.Time
	if !entry.ExpiresAt.IsZero() {
		t := entry.ExpiresAt.UTC()
		expiresAt = &t
	}
	if _, err := s.pool.Exec(ctx, pgInsertRevoked, entry.TokenID, entry.RevokedAt.UTC(), expiresAt); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsRevoked looks the TokenID up by primary key.
func (s *PostgresStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var found bool
	if err := s.pool.QueryRow(ctx, pgSelectRevoked, tokenID).Scan(&found); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return found, nil
}

// Prune deletes entries whose token expired more than the grace window ago.
func (s *PostgresStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, pgPruneRevoked, now.Add(-s.grace).UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

// Ping reports database reachability.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
