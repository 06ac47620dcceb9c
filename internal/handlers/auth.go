package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/guard"
	"github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

const (
	msgAuthFailed      = "Authentication failed"
	msgRegistered      = "Registration received. Check your email to continue."
	msgResetRequested  = "If the account exists, a password reset link has been sent."
	msgPasswordChanged = "Your password has been reset."
)

// AuthServiceInterface defines the login operation
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password, clientIP string) (*services.AuthResponse, error)
}

// AccountServiceInterface defines the account flows guarded by form nonces
type AccountServiceInterface interface {
	Register(ctx context.Context, username, email, password, clientIP string) (*services.UserResponse, error)
	RequestPasswordReset(ctx context.Context, login, clientIP string) error
	ResetPassword(ctx context.Context, token, password, confirm, clientIP string) error
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	authService    AuthServiceInterface
	accountService AccountServiceInterface
	nonces         *auth.NonceManager
	cookieConfig   auth.CookieConfig
	logger         *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService AuthServiceInterface, accountService AccountServiceInterface, nonces *auth.NonceManager, cookieConfig auth.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		accountService: accountService,
		nonces:         nonces,
		cookieConfig:   cookieConfig,
		logger:         logger,
	}
}

// nonceActions lists the forms a nonce may be issued for
var nonceActions = map[string]bool{
	auth.ActionLostPassword:  true,
	auth.ActionRegister:      true,
	auth.ActionResetPassword: true,
}

// Nonce handles GET /auth/nonce?action=...
func (h *AuthHandler) Nonce(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if !nonceActions[action] {
		pkghttp.WriteBadRequest(w, "Unknown form action")
		return
	}

	session := auth.EnsureSessionCookie(w, r, h.cookieConfig)
	pkghttp.WriteJSON(w, http.StatusOK, NonceResponse{
		Action: action,
		Nonce:  h.nonces.Generate(action, session),
		Field:  middleware.NonceField,
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeRequest(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	clientIP := middleware.ClientIPFromContext(r.Context())
	resp, err := h.authService.Login(r.Context(), req.Username, req.Password, clientIP)
	if err != nil {
		var locked *guard.LockedOutError
		switch {
		case errors.As(err, &locked):
			pkghttp.WriteLockedOut(w, locked.Decision.RetryAfterSeconds(), locked.Message())
		case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrAccountDisabled):
			pkghttp.WriteUnauthorized(w, msgAuthFailed)
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Username and password are required")
		default:
			h.logger.Error("login failed", slog.String("client_ip", clientIP), slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Login failed")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// LostPassword handles POST /auth/lost-password.
// The response does not reveal whether the account exists.
func (h *AuthHandler) LostPassword(w http.ResponseWriter, r *http.Request) {
	var req LostPasswordRequest
	if err := decodeRequest(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	clientIP := middleware.ClientIPFromContext(r.Context())
	if err := h.accountService.RequestPasswordReset(r.Context(), req.UserLogin, clientIP); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Username or email is required")
			return
		}
		h.logger.Error("password reset request failed", slog.String("client_ip", clientIP), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Unable to process request")
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, MessageResponse{Message: msgResetRequested})
}

// Register handles POST /auth/register.
// A taken username or e-mail gets the same response as a new account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeRequest(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	clientIP := middleware.ClientIPFromContext(r.Context())
	_, err := h.accountService.Register(r.Context(), req.UserLogin, req.UserEmail, req.Password, clientIP)
	if err != nil && !errors.Is(err, models.ErrConflict) {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
		h.logger.Error("registration failed", slog.String("client_ip", clientIP), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Registration failed")
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, MessageResponse{Message: msgRegistered})
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeRequest(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	clientIP := middleware.ClientIPFromContext(r.Context())
	err := h.accountService.ResetPassword(r.Context(), req.Key, req.Pass1, req.Pass2, clientIP)
	switch {
	case err == nil:
		pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: msgPasswordChanged})
	case errors.Is(err, models.ErrResetTokenInvalid):
		pkghttp.WriteBadRequest(w, "Password reset link is invalid or has expired")
	case errors.Is(err, models.ErrPasswordMismatch):
		pkghttp.WriteBadRequest(w, "Passwords do not match")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	default:
		h.logger.Error("password reset failed", slog.String("client_ip", clientIP), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Password reset failed")
	}
}

// MeResponse describes the caller's access token
type MeResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Me handles GET /auth/me behind AuthMiddleware
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	resp := MeResponse{UserID: claims.UserID, Username: claims.Username}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
