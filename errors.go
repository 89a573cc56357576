package tokengate

import (
	"errors"
	"fmt"
)

// Code is the caller-facing category of a failure.
type Code string

const (
	// CodeInvalidArgument means the request itself is unusable: a missing
	// token or credentials, or input that is not a token at all.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	// CodeUnauthenticated means the token or credentials are not trusted.
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	// CodeNotFound means the referenced user does not exist (login only).
	CodeNotFound Code = "NOT_FOUND"
	// CodeInternal means a store, directory, or codec fault. Safe to retry
	// after backoff.
	CodeInternal Code = "INTERNAL"
)

// Reason is the internal cause of a failure. It is kept for logs, audit, and
// metrics; callers only see Code and Message.
type Reason string

const (
	// ReasonMissingToken: no token was supplied, or the Authorization header
	// was not a Bearer credential.
	ReasonMissingToken       Reason = "missing_token"
	// ReasonMalformed: the input is not a token of the expected shape or
	// algorithm, or its claims cannot be interpreted.
	ReasonMalformed          Reason = "malformed"
	// ReasonBadSignature: the signature does not match the signed content.
	ReasonBadSignature       Reason = "bad_signature"
	// ReasonExpired: the validating clock is past exp plus leeway.
	ReasonExpired            Reason = "expired"
	// ReasonRevoked: the token was logged out.
	ReasonRevoked            Reason = "revoked"
	// ReasonStoreUnavailable: the revocation store gave no answer in time.
	ReasonStoreUnavailable   Reason = "store_unavailable"
	// ReasonMissingCredentials: login without an email or password.
	ReasonMissingCredentials Reason = "missing_credentials"
	// ReasonUserNotFound: no user matches the login email.
	ReasonUserNotFound       Reason = "user_not_found"
	// ReasonInvalidCredentials: the password did not verify.
	ReasonInvalidCredentials Reason = "invalid_credentials"
	// ReasonInternal: directory, codec, or unexpected faults.
	ReasonInternal           Reason = "internal"
)

// Error is the single error type returned by Engine operations.
//
// Two Errors match under errors.Is when their Reasons are equal, so the
// package sentinels can be compared against errors carrying a cause.
type Error struct {
	Code    Code
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// withCause returns a copy of e carrying err.
func (e *Error) withCause(err error) *Error {
	out := *e
	out.Err = err
	return &out
}

// Token failures share one caller-facing message so responses do not reveal
// which check rejected the token.
const untrustedTokenMessage = "invalid or expired token"

var (
	// ErrMissingToken is returned when no token was supplied.
	ErrMissingToken     = &Error{Code: CodeInvalidArgument, Reason: ReasonMissingToken, Message: "token is required"}
	// ErrTokenMalformed covers input that is not a token of the expected shape.
	ErrTokenMalformed   = &Error{Code: CodeInvalidArgument, Reason: ReasonMalformed, Message: "malformed token"}
	// ErrBadSignature is returned when the token signature does not verify.
	ErrBadSignature     = &Error{Code: CodeUnauthenticated, Reason: ReasonBadSignature, Message: untrustedTokenMessage}
	// ErrTokenExpired is returned once the token is past exp plus leeway.
	ErrTokenExpired     = &Error{Code: CodeUnauthenticated, Reason: ReasonExpired, Message: untrustedTokenMessage}
	// ErrTokenRevoked is returned for a token that was logged out.
	ErrTokenRevoked     = &Error{Code: CodeUnauthenticated, Reason: ReasonRevoked, Message: untrustedTokenMessage}
	// ErrStoreUnavailable is returned when revocation state cannot be read.
	// The token is refused rather than assumed live.
	ErrStoreUnavailable = &Error{Code: CodeInternal, Reason: ReasonStoreUnavailable, Message: "internal authentication error"}

	// ErrMissingCredentials is returned by Login when email or password is empty.
	ErrMissingCredentials = &Error{Code: CodeInvalidArgument, Reason: ReasonMissingCredentials, Message: "email and password are required"}
	// ErrUserNotFound is also the value a UserDirectory returns when no user
	// matches.
	ErrUserNotFound       = &Error{Code: CodeNotFound, Reason: ReasonUserNotFound, Message: "invalid credentials"}
	// ErrInvalidCredentials is returned by Login when the password does not
	// verify.
	ErrInvalidCredentials = &Error{Code: CodeUnauthenticated, Reason: ReasonInvalidCredentials, Message: "invalid credentials"}
	// ErrInternal is returned for directory, codec, or revocation write faults.
	ErrInternal           = &Error{Code: CodeInternal, Reason: ReasonInternal, Message: "internal server error"}
)

// CodeOf maps any error to a Code. Errors that are not an *Error are
// unexpected faults and map to CodeInternal; nil maps to "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ReasonOf reports the Reason carried by err, or ReasonInternal for foreign
// errors.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonInternal
}

// MessageOf returns the caller-safe message for err. Foreign errors never
// leak their text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}
