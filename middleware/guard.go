package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/tokengate"
)

// SessionTokenHeader carries the token directly, without the Bearer scheme.
// It takes precedence over Authorization.
const SessionTokenHeader = "X-Session-Token"

// HTTPGuard returns net/http middleware that validates the request token and
// stores the identity in the request context. Rejected requests get a JSON
// error body and the status from HTTPStatus.
func HTTPGuard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Validate(r.Context(), RequestToken(r))
			if err != nil {
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(tokengate.WithIdentity(r.Context(), id)))
		})
	}
}

// RequestToken extracts the token the way HTTPGuard does.
func RequestToken(r *http.Request) string {
	if token := r.Header.Get(SessionTokenHeader); token != "" {
		return token
	}
	token, _ := bearerToken(r.Header.Get("Authorization"))
	return token
}

// HTTPStatus maps a taxonomy code to an HTTP status.
func HTTPStatus(c tokengate.Code) int {
	switch c {
	case "":
		return http.StatusOK
	case tokengate.CodeInvalidArgument:
		return http.StatusBadRequest
	case tokengate.CodeUnauthenticated:
		return http.StatusUnauthorized
	case tokengate.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Code    tokengate.Code `json:"code"`
	Message string         `json:"message"`
}

// WriteError writes err as {"code": ..., "message": ...}. Only the
// caller-safe message is written; causes stay in the logs.
func WriteError(w http.ResponseWriter, err error) {
	code := tokengate.CodeOf(err)
	if code == "" {
		code = tokengate.CodeInternal
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(code))
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: tokengate.MessageOf(err)})
}
