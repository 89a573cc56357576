package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/tokengate/revocation"
)

// LogoutFailureKind classifies logout failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureMissing
	LogoutFailureStore
)

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	PeekExpiry   func(string) (time.Time, bool)
	Store        revocation.Store
	Now          func() time.Time
	WriteTimeout time.Duration
	// MaxTTL is the longest lifetime the codec issues.
	MaxTTL       time.Duration
	// Leeway is the codec's expiry tolerance. A token keeps validating until
	// exp+Leeway, so its entry must be retained at least that long.
	Leeway       time.Duration
	// Grace extends retention past the point where the token stops validating.
	Grace        time.Duration
}

type LogoutResult struct {
	Failure LogoutFailureKind
	Err     error
	TokenID string
}

// RunLogout records tokenStr as revoked. The token is not verified: any
// non-empty string is accepted, so expired or malformed tokens can still be
// revoked. The write is detached from ctx cancellation and bounded by
// WriteTimeout instead.
func RunLogout(ctx context.Context, tokenStr string, deps LogoutDeps) LogoutResult {
	if tokenStr == "" {
		return LogoutResult{Failure: LogoutFailureMissing}
	}

	now := deps.Now()
	entry := revocation.NewEntry(tokenStr, now, retainUntil(tokenStr, now, deps))

	writeCtx := context.WithoutCancel(ctx)
	if deps.WriteTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(writeCtx, deps.WriteTimeout)
		defer cancel()
	}

	if err := deps.Store.Revoke(writeCtx, entry); err != nil {
		return LogoutResult{Failure: LogoutFailureStore, Err: err, TokenID: entry.TokenID}
	}
	return LogoutResult{TokenID: entry.TokenID}
}

// retainUntil is the last instant tokenStr could pass validation, plus Grace.
// An unreadable exp, or one later than any token issued from now could carry,
// is capped at now+MaxTTL+Leeway.
func retainUntil(tokenStr string, now time.Time, deps LogoutDeps) time.Time {
	latest := now.Add(deps.MaxTTL + deps.Leeway)
	validUntil := latest
	if deps.PeekExpiry != nil {
		if exp, ok := deps.PeekExpiry(tokenStr); ok {
			if v := exp.Add(deps.Leeway); v.Before(latest) {
				validUntil = v
			}
		}
	}
	return validUntil.Add(deps.Grace)
}
