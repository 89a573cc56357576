package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tokengate/jwt"
	"github.com/MrEthical07/tokengate/revocation"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMissing
	ValidateFailureMalformed
	ValidateFailureBadSignature
	ValidateFailureExpired
	ValidateFailureRevoked
	ValidateFailureStoreUnavailable
)

// ValidateResult returns either decoded claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.AccessClaims
	TokenID string
}

// RevocationLookup is the read side of the revocation store.
type RevocationLookup interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ValidateDeps captures validation dependencies.
type ValidateDeps struct {
	Decode        func(string) (*jwt.AccessClaims, error)
	Revocations   RevocationLookup
	LookupTimeout time.Duration
}

// RunValidate checks presence, then signature and expiry, then revocation.
// The order is fixed; a later check never runs when an earlier one fails.
func RunValidate(ctx context.Context, tokenStr string, deps ValidateDeps) ValidateResult {
	if tokenStr == "" {
		return ValidateResult{Failure: ValidateFailureMissing}
	}

	claims, err := deps.Decode(tokenStr)
	if err != nil {
		return ValidateResult{Failure: decodeFailure(err), Err: err}
	}

	tokenID := revocation.TokenID(tokenStr)

	lookupCtx := ctx
	if deps.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, deps.LookupTimeout)
		defer cancel()
	}

	revoked, err := deps.Revocations.IsRevoked(lookupCtx, tokenID)
	if err == nil {
		// A lookup that raced cancellation or its deadline is not an answer.
		err = lookupCtx.Err()
	}
	if err != nil {
		return ValidateResult{Failure: ValidateFailureStoreUnavailable, Err: err, TokenID: tokenID}
	}
	if revoked {
		return ValidateResult{Failure: ValidateFailureRevoked, TokenID: tokenID}
	}

	return ValidateResult{Claims: claims, TokenID: tokenID}
}

func decodeFailure(err error) ValidateFailureKind {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ValidateFailureExpired
	case errors.Is(err, jwt.ErrBadSignature):
		return ValidateFailureBadSignature
	default:
		return ValidateFailureMalformed
	}
}
