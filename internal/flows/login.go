package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tokengate/jwt"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureMissingCredentials
	LoginFailureUserNotFound
	LoginFailureInvalidCredentials
	LoginFailureInternal
)

// LoginUserRecord is a flow-local user model.
type LoginUserRecord struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	FindUser         func(context.Context, string) (LoginUserRecord, error)
	VerifyCredential func(context.Context, LoginUserRecord, string) (bool, error)
	// UserNotFound is matched with errors.Is against FindUser errors.
	UserNotFound error
	Encode       func(jwt.SubjectClaims) (string, time.Time, error)
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Failure   LoginFailureKind
	Err       error
	Token     string
	ExpiresAt time.Time
	User      LoginUserRecord
}

// RunLogin checks credentials and issues a session token.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	if email == "" || password == "" {
		return LoginResult{Failure: LoginFailureMissingCredentials}
	}

	user, err := deps.FindUser(ctx, email)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return LoginResult{Failure: LoginFailureUserNotFound, Err: err}
		}
		return LoginResult{Failure: LoginFailureInternal, Err: err}
	}

	ok, err := deps.VerifyCredential(ctx, user, password)
	if err != nil {
		return LoginResult{Failure: LoginFailureInternal, Err: err, User: user}
	}
	if !ok {
		return LoginResult{Failure: LoginFailureInvalidCredentials, User: user}
	}

	token, expiresAt, err := deps.Encode(jwt.SubjectClaims{SubjectID: user.ID, Email: user.Email})
	if err != nil {
		return LoginResult{Failure: LoginFailureInternal, Err: err, User: user}
	}

	return LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}
}
