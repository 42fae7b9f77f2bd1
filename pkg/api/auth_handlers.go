package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/coursehub-io/coursehub/pkg/auth"
	"github.com/coursehub-io/coursehub/pkg/httputil"
	"github.com/coursehub-io/coursehub/pkg/observability"
)

// AuthHandlers handles the authentication endpoints
type AuthHandlers struct {
	service *auth.Service
	logger  *observability.Logger
}

// NewAuthHandlers creates the auth handler group
func NewAuthHandlers(service *auth.Service, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{service: service, logger: logger}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/register", h.register).Methods("POST")
	router.HandleFunc("/api/auth/login", h.login).Methods("POST")
	router.HandleFunc("/api/auth/verify", h.verify).Methods("POST")
	router.HandleFunc("/api/auth/logout", h.logout).Methods("POST")
	router.HandleFunc("/api/auth/logout/all", h.logoutAll).Methods("POST")
	router.HandleFunc("/api/auth/me", h.me).Methods("GET")
}

// writeAuthError maps service errors onto HTTP statuses
func (h *AuthHandlers) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, err.Error())
	case errors.Is(err, auth.ErrAccountDisabled):
		httputil.WriteUnauthorized(w, err.Error())
	case errors.Is(err, auth.ErrDuplicateIdentity):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, auth.ErrTokenMismatch):
		httputil.WriteBadRequest(w, err.Error())
	case auth.IsTokenError(err):
		httputil.WriteUnauthorized(w, "invalid or expired token")
	default:
		h.logger.WithContext(r.Context()).WithError(err).Error("auth request failed")
		httputil.WriteInternalError(w, err)
	}
}

// register handles POST /api/auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !httputil.ValidateAll(w,
		httputil.RequireNonEmpty(req.Username, "username"),
		httputil.RequireNonEmpty(req.Password, "password"),
		httputil.RequireNonEmpty(req.Email, "email"),
	) {
		return
	}

	view, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	httputil.WriteCreated(w, view, "user registered")
}

// login handles POST /api/auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !httputil.ValidateAll(w,
		httputil.RequireNonEmpty(req.Username, "username"),
		httputil.RequireNonEmpty(req.Password, "password"),
	) {
		return
	}

	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	httputil.WriteData(w, result, "login successful")
}

// verify handles POST /api/auth/verify. It verifies an arbitrary token, not
// the caller's session, so it sits on the public allowlist.
func (h *AuthHandlers) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.WriteBadRequest(w, "token is required")
		return
	}

	verification, err := h.service.VerifyToken(r.Context(), req.Token)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	httputil.WriteData(w, verification, verification.Reason)
}

// requestToken returns the body token when given, falling back to the
// request's own authorization header
func requestToken(r *http.Request, bodyToken string) string {
	if bodyToken != "" {
		return bodyToken
	}
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// logout handles POST /api/auth/logout
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req logoutRequest
	if r.Body != nil && r.ContentLength != 0 {
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
	}

	token := requestToken(r, req.Token)
	if token == "" {
		httputil.WriteBadRequest(w, "no token to revoke")
		return
	}

	result, err := h.service.Logout(r.Context(), token, p.Username)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	httputil.WriteData(w, result, result.Message)
}

// logoutAll handles POST /api/auth/logout/all
func (h *AuthHandlers) logoutAll(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	result, err := h.service.LogoutAll(r.Context(), p.Username)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	httputil.WriteData(w, result, result.Message)
}

// me handles GET /api/auth/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	view, err := h.service.Profile(r.Context(), p.Username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			httputil.WriteNotFound(w, "user not found")
			return
		}
		h.writeAuthError(w, r, err)
		return
	}
	httputil.WriteData(w, view, "profile")
}
