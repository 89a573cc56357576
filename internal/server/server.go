// Package server is the JSON-over-HTTP surface of tokengate-server: user
// registration, login, logout, and the forms service behind the auth gate.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/directory"
	"github.com/MrEthical07/tokengate/internal/forms"
	"github.com/MrEthical07/tokengate/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Registrar creates users.
type Registrar interface {
	Create(ctx context.Context, u directory.NewUser) (tokengate.UserRecord, error)
}

// Engine is the part of *tokengate.Engine the handlers use.
type Engine interface {
	middleware.Validator
	Login(ctx context.Context, email, password string) (*tokengate.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Health(ctx context.Context) error
}

type Server struct {
	engine  Engine
	users   Registrar
	forms   *forms.Service
	metrics http.Handler
	log     *zap.Logger
}

// New wires the handlers. metrics may be nil, in which case /metrics is not
// mounted.
func New(engine Engine, users Registrar, formsSvc *forms.Service, metrics http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		engine:  engine,
		users:   users,
		forms:   formsSvc,
		metrics: metrics,
		log:     log.Named("http"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/users", s.handleRegister)
	mux.HandleFunc("POST /v1/login", s.handleLogin)
	mux.HandleFunc("POST /v1/logout", s.handleLogout)
	mux.Handle("GET /v1/me", middleware.HTTPGuard(s.engine)(http.HandlerFunc(s.handleMe)))

	createForm := middleware.Guard(s.engine, s.forms.Create)
	listForms := middleware.Guard(s.engine, s.forms.List)
	getForm := middleware.Guard(s.engine, s.forms.Get)
	deleteForm := middleware.Guard(s.engine, s.forms.Delete)

	mux.HandleFunc("POST /v1/forms", func(w http.ResponseWriter, r *http.Request) {
		var req forms.CreateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		req.Token = tokenOr(req.Token, r)
		resp, err := createForm(r.Context(), req)
		respond(w, http.StatusCreated, resp, err)
	})
	mux.HandleFunc("GET /v1/forms", func(w http.ResponseWriter, r *http.Request) {
		req := forms.ListRequest{
			Token: middleware.RequestToken(r),
			Page:  queryInt(r, "page"),
			Limit: queryInt(r, "limit"),
		}
		resp, err := listForms(r.Context(), req)
		respond(w, http.StatusOK, resp, err)
	})
	mux.HandleFunc("GET /v1/forms/{id}", func(w http.ResponseWriter, r *http.Request) {
		req := forms.GetRequest{Token: middleware.RequestToken(r), ID: pathID(r)}
		resp, err := getForm(r.Context(), req)
		respond(w, http.StatusOK, resp, err)
	})
	mux.HandleFunc("DELETE /v1/forms/{id}", func(w http.ResponseWriter, r *http.Request) {
		req := forms.DeleteRequest{Token: middleware.RequestToken(r), ID: pathID(r)}
		resp, err := deleteForm(r.Context(), req)
		respond(w, http.StatusOK, resp, err)
	})

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return s.logRequests(mux)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Success bool                  `json:"success"`
	User    tokengate.UserSummary `json:"user"`
	Message string                `json:"message"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, err := s.users.Create(r.Context(), directory.NewUser{Name: req.Name, Email: req.Email, Password: req.Password})
	switch {
	case errors.Is(err, directory.ErrInvalidUser):
		writeJSON(w, http.StatusBadRequest, errorBody{Code: tokengate.CodeInvalidArgument, Message: err.Error()})
		return
	case errors.Is(err, directory.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody{Code: codeAlreadyExists, Message: err.Error()})
		return
	case err != nil:
		s.log.Error("create user failed", zap.Error(err))
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Success: true,
		User: tokengate.UserSummary{
			ID:        u.ID,
			Email:     u.Email,
			Name:      u.Name,
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		},
		Message: "User created successfully",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool `json:"success"`
	*tokengate.LoginResult
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Success: true, LoginResult: res})
}

type logoutRequest struct {
	Token string `json:"token"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.Logout(r.Context(), tokenOr(req.Token, r)); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Logged out successfully"})
}

type meResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := tokengate.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, tokengate.ErrInternal)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{ID: id.SubjectID, Email: id.Email, ExpiresAt: id.ExpiresAt})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: "revocation store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "ok"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

const codeAlreadyExists tokengate.Code = "ALREADY_EXISTS"

type errorBody struct {
	Code    tokengate.Code `json:"code"`
	Message string         `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: tokengate.CodeInvalidArgument, Message: "invalid JSON body"})
		return false
	}
	return true
}

// respond writes the result of a guarded call: the value on success, the
// taxonomy error otherwise.
func respond[T any](w http.ResponseWriter, status int, v T, err error) {
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, status, v)
}

func tokenOr(token string, r *http.Request) string {
	if token != "" {
		return token
	}
	return middleware.RequestToken(r)
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func pathID(r *http.Request) int64 {
	n, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return n
}
