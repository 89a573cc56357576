package middleware

import (
	"context"
	"strings"

	"github.com/MrEthical07/tokengate"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// InterceptorOptions fine-tunes the gRPC interceptor.
type InterceptorOptions struct {
	// AllowMethods lists full method names served without a token, such as
	// "/auth.AuthService/Login".
	AllowMethods []string
	Logger       *zap.Logger
}

// UnaryServerInterceptor enforces session tokens on every unary method not
// listed in opts.AllowMethods. Validation failures become gRPC status errors
// through GRPCStatus; the validated identity is available to handlers via
// tokengate.IdentityFromContext.
func UnaryServerInterceptor(v Validator, opts InterceptorOptions) grpc.UnaryServerInterceptor {
	allow := make(map[string]struct{}, len(opts.AllowMethods))
	for _, method := range opts.AllowMethods {
		if method = strings.TrimSpace(method); method != "" {
			allow[method] = struct{}{}
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if _, ok := allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		id, err := v.Validate(ctx, ExtractToken(ctx, req))
		if err != nil {
			logger.Debug("gRPC token rejected",
				zap.String("method", info.FullMethod),
				zap.String("reason", string(tokengate.ReasonOf(err))),
			)
			return nil, GRPCStatus(err)
		}

		return handler(tokengate.WithIdentity(ctx, id), req)
	}
}

// GRPCStatus converts any error into a gRPC status error carrying the
// caller-safe message. Foreign errors become codes.Internal.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(GRPCCode(tokengate.CodeOf(err)), tokengate.MessageOf(err))
}

// GRPCCode maps a taxonomy code to its gRPC equivalent.
func GRPCCode(c tokengate.Code) codes.Code {
	switch c {
	case "":
		return codes.OK
	case tokengate.CodeInvalidArgument:
		return codes.InvalidArgument
	case tokengate.CodeUnauthenticated:
		return codes.Unauthenticated
	case tokengate.CodeNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}
