package tokengate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/tokengate/internal/audit"
	"github.com/MrEthical07/tokengate/internal/flows"
	"github.com/MrEthical07/tokengate/internal/logger"
	"github.com/MrEthical07/tokengate/jwt"
	"github.com/MrEthical07/tokengate/revocation"
	"go.uber.org/zap"
)

var errDirectoryNotConfigured = errors.New("user directory not configured")

// Engine issues, validates, and revokes session tokens.
//
// An Engine is built once with Builder and is safe for concurrent use until
// Close. It owns two goroutines: the audit dispatcher (when audit is enabled)
// and the revocation janitor (when the store needs pruning).
type Engine struct {
	config     Config
	jwtManager *jwt.Manager
	store      revocation.Store
	directory  UserDirectory
	flows      flows.Service
	audit      *audit.Dispatcher
	metrics    *Metrics
	janitor    *revocation.Janitor
	log        *zap.Logger
}

// Close stops background work. Pending audit events are flushed first.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.janitor.Stop()
	e.audit.Close()
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Validate checks token and returns the identity it carries.
//
// Checks run in a fixed order and stop at the first failure: presence,
// signature and expiry, then revocation. A revocation store that errors or
// does not answer within Config.Revocation.LookupTimeout yields
// ErrStoreUnavailable; it is never treated as "not revoked".
func (e *Engine) Validate(ctx context.Context, token string) (*Identity, error) {
	start := time.Now()
	res := e.flows.Validate(ctx, token)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	if res.Failure == flows.ValidateFailureNone {
		e.metricInc(MetricValidateSuccess)
		return identityFromClaims(res.Claims, res.TokenID), nil
	}

	var err *Error
	switch res.Failure {
	case flows.ValidateFailureMissing:
		e.metricInc(MetricValidateMissingToken)
		err = ErrMissingToken
	case flows.ValidateFailureMalformed:
		e.metricInc(MetricValidateMalformed)
		err = ErrTokenMalformed.withCause(res.Err)
	case flows.ValidateFailureBadSignature:
		e.metricInc(MetricValidateBadSignature)
		err = ErrBadSignature.withCause(res.Err)
	case flows.ValidateFailureExpired:
		e.metricInc(MetricValidateExpired)
		err = ErrTokenExpired.withCause(res.Err)
	case flows.ValidateFailureRevoked:
		e.metricInc(MetricValidateRevoked)
		err = ErrTokenRevoked
	case flows.ValidateFailureStoreUnavailable:
		e.metricInc(MetricValidateStoreUnavailable)
		err = ErrStoreUnavailable.withCause(res.Err)
		e.log.Error("revocation lookup failed",
			zap.String("token_id", logger.ShortID(res.TokenID)),
			zap.Error(res.Err),
		)
	default:
		err = ErrInternal.withCause(res.Err)
	}

	if err.Reason != ReasonStoreUnavailable {
		e.log.Debug("token rejected", zap.String("reason", string(err.Reason)))
	}
	e.emitAudit(ctx, auditEventTokenRejected, false, "", res.TokenID, err, nil)
	return nil, err
}

// Login checks credentials against the user directory and issues a token
// valid for Config.JWT.TTL.
//
// Failures: empty email or password is ErrMissingCredentials; an unknown
// email is ErrUserNotFound, or ErrInvalidCredentials when
// Config.Login.UnifyFailures is set; a wrong password is
// ErrInvalidCredentials; directory and codec faults are ErrInternal.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e.directory == nil {
		e.log.Error("login attempted without a user directory")
		return nil, ErrInternal.withCause(errDirectoryNotConfigured)
	}

	res := e.flows.Login(ctx, email, password)
	if res.Failure == flows.LoginFailureNone {
		e.metricInc(MetricLoginSuccess)
		subject := strconv.FormatInt(res.User.ID, 10)
		e.log.Info("login succeeded",
			zap.String("subject_id", subject),
			zap.String("email", logger.MaskEmail(res.User.Email)),
		)
		e.emitAudit(ctx, auditEventLoginSuccess, true, subject, revocation.TokenID(res.Token), nil, nil)
		return &LoginResult{
			Token:     res.Token,
			ExpiresAt: res.ExpiresAt,
			Message:   "login successful",
			User: UserSummary{
				ID:        res.User.ID,
				Email:     res.User.Email,
				Name:      res.User.Name,
				CreatedAt: res.User.CreatedAt,
				UpdatedAt: res.User.UpdatedAt,
			},
		}, nil
	}

	var err *Error
	switch res.Failure {
	case flows.LoginFailureMissingCredentials:
		err = ErrMissingCredentials
	case flows.LoginFailureUserNotFound:
		err = ErrUserNotFound
		if e.config.Login.UnifyFailures {
			err = ErrInvalidCredentials
		}
	case flows.LoginFailureInvalidCredentials:
		err = ErrInvalidCredentials
	default:
		err = ErrInternal.withCause(res.Err)
		e.log.Error("login failed", zap.Error(res.Err))
	}

	e.metricInc(MetricLoginFailure)
	var subject string
	if res.User.ID != 0 {
		subject = strconv.FormatInt(res.User.ID, 10)
	}
	e.log.Info("login rejected",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("reason", string(err.Reason)),
	)
	e.emitAudit(ctx, auditEventLoginFailure, false, subject, "", err, func() map[string]string {
		return map[string]string{"email": logger.MaskEmail(email)}
	})
	return nil, err
}

// Logout revokes token. Any non-empty string is accepted without being
// verified, so expired or malformed tokens are revoked too. Logout is
// idempotent.
//
// The revocation write is detached from ctx cancellation and bounded by
// Config.Revocation.WriteTimeout. When Logout returns nil, every later
// Validate of token fails with ErrTokenRevoked.
func (e *Engine) Logout(ctx context.Context, token string) error {
	res := e.flows.Logout(ctx, token)
	switch res.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(MetricLogout)
		e.log.Info("token revoked", zap.String("token_id", logger.ShortID(res.TokenID)))
		e.emitAudit(ctx, auditEventLogout, true, "", res.TokenID, nil, nil)
		return nil
	case flows.LogoutFailureMissing:
		e.metricInc(MetricLogoutFailure)
		return ErrMissingToken
	default:
		e.metricInc(MetricLogoutFailure)
		err := ErrInternal.withCause(res.Err)
		e.log.Error("revocation write failed",
			zap.String("token_id", logger.ShortID(res.TokenID)),
			zap.Error(res.Err),
		)
		e.emitAudit(ctx, auditEventLogoutFailure, false, "", res.TokenID, err, nil)
		return err
	}
}

// Health pings the revocation store when it supports pinging.
func (e *Engine) Health(ctx context.Context) error {
	ok, latency, err := e.flows.Health(ctx)
	if !ok {
		e.log.Warn("revocation store unhealthy", zap.Duration("latency", latency), zap.Error(err))
		return ErrStoreUnavailable.withCause(err)
	}
	return nil
}

func identityFromClaims(c *jwt.AccessClaims, tokenID string) *Identity {
	id := &Identity{
		SubjectID: c.SubjectID,
		Email:     c.Email,
		TokenID:   tokenID,
		Claims: map[string]any{
			"id":    c.SubjectID,
			"email": c.Email,
		},
	}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
		id.Claims["iat"] = c.IssuedAt.Unix()
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
		id.Claims["exp"] = c.ExpiresAt.Unix()
	}
	if c.ID != "" {
		id.Claims["jti"] = c.ID
	}
	if c.Issuer != "" {
		id.Claims["iss"] = c.Issuer
	}
	if len(c.Audience) > 0 {
		id.Claims["aud"] = []string(c.Audience)
	}
	return id
}
