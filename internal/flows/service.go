package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/tokengate/revocation"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.Decode != nil && s.deps.Validate.Revocations != nil && s.deps.Logout.Store != nil
}

func (s Service) Validate(ctx context.Context, tokenStr string) ValidateResult {
	return RunValidate(ctx, tokenStr, s.deps.Validate)
}

func (s Service) Login(ctx context.Context, email, password string) LoginResult {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) Logout(ctx context.Context, tokenStr string) LogoutResult {
	return RunLogout(ctx, tokenStr, s.deps.Logout)
}

// Health pings the revocation store when it supports it. Stores without a
// Pinger are reported healthy.
func (s Service) Health(ctx context.Context) (bool, time.Duration, error) {
	start := time.Now()
	p, ok := s.deps.Logout.Store.(revocation.Pinger)
	if !ok {
		return true, 0, nil
	}
	err := p.Ping(ctx)
	return err == nil, time.Since(start), err
}
