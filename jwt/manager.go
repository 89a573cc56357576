package jwt

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the HMAC variant used to sign session tokens.
type SigningMethod string

const (
	// MethodHS256 signs tokens with HMAC-SHA256. It is the default.
	MethodHS256 SigningMethod = "hs256"
	// MethodHS384 signs tokens with HMAC-SHA384.
	MethodHS384 SigningMethod = "hs384"
	// MethodHS512 signs tokens with HMAC-SHA512.
	MethodHS512 SigningMethod = "hs512"
)

var (
	// ErrMalformed is returned for input that is not a token of the expected
	// shape: wrong segment count, undecodable header, unsupported algorithm,
	// or claims that cannot be interpreted.
	ErrMalformed = errors.New("token malformed")
	// ErrBadSignature is returned when the signature does not match the
	// signed content.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrExpired is returned when the validating clock is at or past exp.
	ErrExpired = errors.New("token expired")
)

const maxLeeway = 2 * time.Minute

// Config controls token issuance and verification.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	Secret        []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	Now           func() time.Time
}

// SubjectClaims are the identity claims a caller asks to be encoded.
type SubjectClaims struct {
	SubjectID int64
	Email     string
}

// AccessClaims is the decoded payload of a session token.
type AccessClaims struct {
	SubjectID int64  `json:"id"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// Manager encodes and decodes signed session tokens.
//
// Manager is safe for concurrent use.
type Manager struct {
	config Config
	method *jwt.SigningMethodHMAC
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing secret required")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	method, err := resolveMethod(cfg.SigningMethod)
	if err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	return &Manager{config: cfg, method: method}, nil
}

func resolveMethod(m SigningMethod) (*jwt.SigningMethodHMAC, error) {
	switch SigningMethod(strings.ToLower(string(m))) {
	case MethodHS256:
		return jwt.SigningMethodHS256, nil
	case MethodHS384:
		return jwt.SigningMethodHS384, nil
	case MethodHS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, errors.New("unsupported signing method")
	}
}

// TTL returns the configured default lifetime of issued tokens.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Encode issues a token for claims with the configured TTL.
func (m *Manager) Encode(claims SubjectClaims) (string, time.Time, error) {
	return m.EncodeWithTTL(claims, m.config.TTL)
}

// EncodeWithTTL issues a token whose exp is iat+ttl. iat is the manager
// clock truncated to whole seconds, matching the JWT NumericDate precision.
func (m *Manager) EncodeWithTTL(claims SubjectClaims, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, errors.New("ttl must be positive")
	}

	issuedAt := m.config.Now().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)

	access := AccessClaims{
		SubjectID: claims.SubjectID,
		Email:     claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		access.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token, err := jwt.NewWithClaims(m.method, access).SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Decode verifies tokenStr and returns its claims.
//
// Checks run in a fixed order: shape and header algorithm (ErrMalformed),
// signature over the raw segments (ErrBadSignature), then claim
// interpretation against the manager clock (ErrExpired or ErrMalformed).
// Claims are never read from a token whose signature has not matched.
func (m *Manager) Decode(tokenStr string) (*AccessClaims, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrMalformed
	}
	if err := m.checkHeader(parts[0]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !m.signatureMatches(parts[0]+"."+parts[1], parts[2]) {
		return nil, ErrBadSignature
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(m.config.Now),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	claims := &AccessClaims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !token.Valid {
		return nil, ErrMalformed
	}

	return claims, nil
}

// PeekExpiry reads exp without verifying anything. It must only be used for
// housekeeping such as choosing how long a revocation entry is retained.
func (m *Manager) PeekExpiry(tokenStr string) (time.Time, bool) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

type tokenHeader struct {
	Alg string `json:"alg"`
}

func (m *Manager) checkHeader(segment string) error {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return errors.New("header is not base64url")
	}
	var header tokenHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return errors.New("header is not JSON")
	}
	if header.Alg != m.method.Alg() {
		return fmt.Errorf("unsupported algorithm %q", header.Alg)
	}
	return nil
}

// signatureMatches compares the encoded signature segment itself, so a change
// confined to the unused trailing bits of the base64 text is still rejected.
func (m *Manager) signatureMatches(signingString, segment string) bool {
	sig, err := m.method.Sign(signingString, m.config.Secret)
	if err != nil {
		return false
	}
	expected := base64.RawURLEncoding.EncodeToString(sig)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(segment)) == 1
}
