package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/tokengate"
	"google.golang.org/grpc/metadata"
)

// Validator is the part of *tokengate.Engine the gate needs.
type Validator interface {
	Validate(ctx context.Context, token string) (*tokengate.Identity, error)
}

// TokenCarrier is implemented by requests with a direct token field.
type TokenCarrier interface {
	GetToken() string
}

// AuthorizationCarrier is implemented by requests with an authorization field
// holding "Bearer <token>".
type AuthorizationCarrier interface {
	GetAuthorization() string
}

// ProtectedFunc is an operation that runs only for a validated caller.
type ProtectedFunc[Req, Resp any] func(ctx context.Context, id *tokengate.Identity, req Req) (Resp, error)

// Guard wraps fn so that it only runs after the request token validates.
//
// The token is taken from the request's direct token field, then from its
// authorization field, then from incoming gRPC metadata. On failure fn is not
// called and the validator's *tokengate.Error is returned. On success the
// identity is also attached to the context passed to fn, and fn's result is
// returned unchanged.
func Guard[Req, Resp any](v Validator, fn ProtectedFunc[Req, Resp]) func(context.Context, Req) (Resp, error) {
	return func(ctx context.Context, req Req) (Resp, error) {
		var zero Resp

		id, err := v.Validate(ctx, ExtractToken(ctx, req))
		if err != nil {
			return zero, asGateError(err)
		}

		return fn(tokengate.WithIdentity(ctx, id), id, req)
	}
}

// ExtractToken finds the session token for req. A direct token field wins
// over an authorization field, which wins over the "authorization" entry of
// incoming gRPC metadata. It returns "" when none holds a token.
func ExtractToken(ctx context.Context, req any) string {
	if c, ok := req.(TokenCarrier); ok {
		if token := c.GetToken(); token != "" {
			return token
		}
	}
	if c, ok := req.(AuthorizationCarrier); ok {
		if token, ok := bearerToken(c.GetAuthorization()); ok {
			return token
		}
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for _, value := range md.Get(authorizationKey) {
			if token, ok := bearerToken(value); ok {
				return token
			}
		}
	}
	return ""
}

const authorizationKey = "authorization"

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" || strings.ContainsRune(token, ' ') {
		return "", false
	}

	return token, true
}

// asGateError guarantees the gate only ever surfaces taxonomy errors.
func asGateError(err error) error {
	var te *tokengate.Error
	if errors.As(err, &te) {
		return err
	}
	return &tokengate.Error{
		Code:    tokengate.CodeInternal,
		Reason:  tokengate.ReasonInternal,
		Message: tokengate.ErrInternal.Message,
		Err:     err,
	}
}
