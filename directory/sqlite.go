package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/mattn/go-sqlite3"
)

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
`

// SQLiteDirectory stores users in a SQLite users table.
type SQLiteDirectory struct {
	db     *sql.DB
	hasher hasher
	now    func() time.Time
}

// NewSQLiteDirectory wraps db. bcryptCost outside bcrypt's range selects the
// default cost. Call Migrate before first use.
func NewSQLiteDirectory(db *sql.DB, bcryptCost int) *SQLiteDirectory {
	return &SQLiteDirectory{
		db:     db,
		hasher: newHasher(bcryptCost),
		now:    time.Now,
	}
}

func (d *SQLiteDirectory) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, usersSchema); err != nil {
		return fmt.Errorf("creating users: %w", err)
	}
	return nil
}

// Create registers a user with a bcrypt hash of the password.
func (d *SQLiteDirectory) Create(ctx context.Context, u NewUser) (tokengate.UserRecord, error) {
	u, err := u.normalized()
	if err != nil {
		return tokengate.UserRecord{}, err
	}

	hash, err := d.hasher.hash(u.Password)
	if err != nil {
		return tokengate.UserRecord{}, fmt.Errorf("hashing password: %w", err)
	}

	now := d.now().UTC().Truncate(time.Second)
	stamp := now.Format(time.RFC3339)
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		u.Name, u.Email, hash, stamp, stamp,
	)
	if err != nil {
		var sqErr sqlite3.Error
		if errors.As(err, &sqErr) && sqErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return tokengate.UserRecord{}, ErrAlreadyExists
		}
		return tokengate.UserRecord{}, fmt.Errorf("inserting user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return tokengate.UserRecord{}, fmt.Errorf("reading user id: %w", err)
	}

	return tokengate.UserRecord{
		ID:           id,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// FindByEmail returns tokengate.ErrUserNotFound when no row matches.
func (d *SQLiteDirectory) FindByEmail(ctx context.Context, email string) (tokengate.UserRecord, error) {
	var (
		u                    tokengate.UserRecord
		createdAt, updatedAt string
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return tokengate.UserRecord{}, tokengate.ErrUserNotFound
	}
	if err != nil {
		return tokengate.UserRecord{}, fmt.Errorf("querying user: %w", err)
	}

	if u.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return tokengate.UserRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return tokengate.UserRecord{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return u, nil
}

func (d *SQLiteDirectory) VerifyCredential(ctx context.Context, user tokengate.UserRecord, proof string) (bool, error) {
	return verify(ctx, user, proof)
}
