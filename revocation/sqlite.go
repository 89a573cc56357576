package revocation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sqliteTimeLayout is fixed width so stored timestamps compare correctly as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS revoked_tokens (
	token_id   TEXT PRIMARY KEY,
	revoked_at TEXT NOT NULL,
	expires_at TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires_at ON revoked_tokens(expires_at);
`

// SQLiteStore persists entries in a revoked_tokens table.
type SQLiteStore struct {
	db    *sql.DB
	grace time.Duration
}

// NewSQLiteStore wraps an open database. Call Migrate before first use.
func NewSQLiteStore(db *sql.DB, grace time.Duration) *SQLiteStore {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &SQLiteStore{db: db, grace: grace}
}

// Migrate creates the table and index if absent.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("creating revoked_tokens: %w", err)
	}
	return nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

// Revoke inserts the entry; a duplicate TokenID is ignored.
func (s *SQLiteStore) Revoke(ctx context.Context, entry Entry) error {
	var expiresAt sql.NullString
	if !entry.ExpiresAt.IsZero() {
		expiresAt = sql.NullString{String: formatSQLiteTime(entry.ExpiresAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (token_id, revoked_at, expires_at) VALUES (?, ?, ?)`,
		entry.TokenID, formatSQLiteTime(entry.RevokedAt), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsRevoked looks the TokenID up by primary key.
func (s *SQLiteStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_id = ?)`, tokenID,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return found == 1, nil
}

// Prune deletes entries whose token expired more than the grace window ago.
func (s *SQLiteStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	cutoff := formatSQLiteTime(now.Add(-s.grace))
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at IS NOT NULL AND expires_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// Ping reports database reachability.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
