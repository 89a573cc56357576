package tokengate

import (
	"context"
	"time"
)

// Identity is the verified caller, built from a token's claims on successful
// validation. It lives only in the request context.
type Identity struct {
	SubjectID int64
	Email     string
	// TokenID is the revocation key of the token that authenticated the call.
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Claims holds every decoded claim, including registered ones.
	Claims map[string]any
}

// UserRecord is what a UserDirectory returns for a login lookup.
type UserRecord struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserDirectory resolves login identifiers and checks credentials.
//
// FindByEmail returns ErrUserNotFound (or an error wrapping it) when no user
// matches; any other error is treated as a directory fault.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	VerifyCredential(ctx context.Context, user UserRecord, proof string) (bool, error)
}

// UserSummary is the public part of a user returned on login.
type UserSummary struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoginResult is returned by Engine.Login.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Message   string      `json:"message"`
	User      UserSummary `json:"user"`
}
