package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrUnavailable wraps every backend failure. A lookup that returns it has
// produced no answer.
var ErrUnavailable = errors.New("revocation store unavailable")

// DefaultGrace is how long a store keeps an entry past its ExpiresAt.
const DefaultGrace = time.Minute

// Entry is one revoked token.
type Entry struct {
	TokenID   string
	RevokedAt time.Time
	// ExpiresAt is the last instant the token could still pass validation,
	// leeway included. Stores keep the entry at least until ExpiresAt plus
	// their own grace. Zero keeps the entry indefinitely.
	ExpiresAt time.Time
}

// Store is the contract every revocation backend satisfies.
//
// Revoke must not return before the entry is visible to IsRevoked on the same
// logical store. IsRevoked must not answer false from a cache.
type Store interface {
	Revoke(ctx context.Context, entry Entry) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Pruner is implemented by stores that need explicit removal of entries whose
// tokens have expired.
type Pruner interface {
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TokenID derives the storage key for a raw token string.
func TokenID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewEntry builds an entry for a raw token. expiresAt may be zero.
func NewEntry(token string, revokedAt, expiresAt time.Time) Entry {
	return Entry{
		TokenID:   TokenID(token),
		RevokedAt: revokedAt,
		ExpiresAt: expiresAt,
	}
}

// retainUntil reports when e may be pruned. ok is false when the entry must be
// kept forever.
func (e Entry) retainUntil(grace time.Duration) (time.Time, bool) {
	if e.ExpiresAt.IsZero() {
		return time.Time{}, false
	}
	return e.ExpiresAt.Add(grace), true
}
