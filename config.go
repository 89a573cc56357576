package tokengate

import (
	"errors"
	"strings"
	"time"
)

// Config defines engine behavior.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	JWT        JWTConfig
	Revocation RevocationConfig
	Login      LoginConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	// Now is the clock used for token issuance, expiry checks, and revocation
	// timestamps. Defaults to time.Now.
	Now func() time.Time
}

// JWTConfig controls the session token codec.
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string
	Secret        []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// RevocationConfig bounds revocation store calls and controls pruning.
type RevocationConfig struct {
	// LookupTimeout bounds the revocation check in Validate. A lookup that
	// times out fails closed.
	LookupTimeout time.Duration
	// WriteTimeout bounds the revocation write in Logout. The write is not
	// tied to the caller's cancellation.
	WriteTimeout time.Duration
	// Grace is how long an entry is kept after its token stops validating
	// (exp plus JWT leeway). It applies to every store, including ones passed
	// to WithRevocationStore.
	Grace time.Duration
	// PruneInterval is the janitor period for stores that need pruning.
	// Zero disables the janitor.
	PruneInterval time.Duration
}

// LoginConfig controls login failure reporting.
type LoginConfig struct {
	// UnifyFailures reports an unknown email the same way as a wrong
	// password (Unauthenticated), closing the account-enumeration channel.
	UnifyFailures bool
}

// AuditConfig controls async audit dispatch.
type AuditConfig struct {
	Enabled      bool
	BufferSize   int
	DropIfFull   bool
	// CloseTimeout bounds how long Engine.Close waits for queued events to
	// reach the sink. Zero waits indefinitely.
	CloseTimeout time.Duration
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

const maxJWTLeeway = 2 * time.Minute

// DefaultConfig returns the baseline configuration. JWT.Secret must still be
// set before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:           24 * time.Hour,
			SigningMethod: "hs256",
		},
		Revocation: RevocationConfig{
			LookupTimeout: 500 * time.Millisecond,
			WriteTimeout:  2 * time.Second,
			Grace:         time.Minute,
			PruneInterval: 10 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:      false,
			BufferSize:   1024,
			DropIfFull:   true,
			CloseTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256", "hs384", "hs512":
	default:
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret must be set")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > maxJWTLeeway {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.Issuer != "" && strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must not be blank")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	// Revocation
	if c.Revocation.LookupTimeout < 0 {
		return errors.New("Revocation LookupTimeout must be >= 0")
	}
	if c.Revocation.WriteTimeout <= 0 {
		return errors.New("Revocation WriteTimeout must be > 0")
	}
	if c.Revocation.Grace < 0 {
		return errors.New("Revocation Grace must be >= 0")
	}
	if c.Revocation.PruneInterval < 0 {
		return errors.New("Revocation PruneInterval must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.CloseTimeout < 0 {
		return errors.New("Audit CloseTimeout must be >= 0")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
