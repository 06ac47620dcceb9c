package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/guard"
	"github.com/BradenHooton/loginguard/internal/handlers"
	"github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(authSvc handlers.AuthServiceInterface, accountSvc handlers.AccountServiceInterface) *handlers.AuthHandler {
	if authSvc == nil {
		authSvc = &handlers.MockAuthService{}
	}
	if accountSvc == nil {
		accountSvc = &handlers.MockAccountService{}
	}
	return handlers.NewAuthHandler(authSvc, accountSvc, auth.NewNonceManager("nonce-secret", time.Hour), auth.CookieConfig{SameSite: "lax"}, testLogger())
}

// serve runs h behind the ClientIP middleware so handlers see a resolved address
func serve(t *testing.T, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	resolver, err := pkghttp.NewIPResolver(nil, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	middleware.ClientIP(resolver, testLogger())(h).ServeHTTP(w, req)
	return w
}

func TestNonce_IssuesSessionBoundNonce(t *testing.T) {
	h := newHandler(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/auth/nonce?action="+auth.ActionLostPassword, nil)

	w := serve(t, h.Nonce, req)

	var resp handlers.NonceResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, auth.ActionLostPassword, resp.Action)
	assert.Equal(t, middleware.NonceField, resp.Field)
	assert.Len(t, resp.Nonce, 20)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestNonce_ReusesExistingSession(t *testing.T) {
	h := newHandler(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/auth/nonce?action="+auth.ActionRegister, nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "existing-session"})

	w := serve(t, h.Nonce, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies(), "no new cookie when one is presented")
}

func TestNonce_UnknownAction(t *testing.T) {
	h := newHandler(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/auth/nonce?action=deleteeverything", nil)

	w := serve(t, h.Nonce, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestLogin_Success(t *testing.T) {
	var gotIP, gotUser string
	mock := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, username, password, clientIP string) (*services.AuthResponse, error) {
			gotUser, gotIP = username, clientIP
			return &services.AuthResponse{
				AccessToken: "token",
				TokenType:   "Bearer",
				ExpiresIn:   900,
				User:        &services.UserResponse{ID: "u1", Username: username},
			}, nil
		},
	}
	h := newHandler(mock, nil)
	req := handlers.NewTestRequest(t, http.MethodPost, "/auth/login", handlers.LoginRequest{Username: "alice", Password: "secret"})
	req.RemoteAddr = "192.0.2.10:4000"

	w := serve(t, h.Login, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "token", resp.AccessToken)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "192.0.2.10", gotIP)
}

func TestLogin_FormEncoded(t *testing.T) {
	var gotUser, gotPassword string
	mock := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, username, password, clientIP string) (*services.AuthResponse, error) {
			gotUser, gotPassword = username, password
			return &services.AuthResponse{AccessToken: "token"}, nil
		},
	}
	h := newHandler(mock, nil)
	req := handlers.NewFormRequest(http.MethodPost, "/auth/login", url.Values{"username": {"bob"}, "password": {"hunter2"}})

	w := serve(t, h.Login, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", gotUser)
	assert.Equal(t, "hunter2", gotPassword)
}

func TestLogin_LockedOut(t *testing.T) {
	mock := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, username, password, clientIP string) (*services.AuthResponse, error) {
			return nil, fmt.Errorf("pre-auth: %w", &guard.LockedOutError{Decision: guard.Decision{RetryAfter: 14*time.Minute + 30*time.Second}})
		},
	}
	h := newHandler(mock, nil)
	req := handlers.NewTestRequest(t, http.MethodPost, "/auth/login", handlers.LoginRequest{Username: "alice", Password: "x"})

	w := serve(t, h.Login, req)

	handlers.AssertErrorResponse(t, w, http.StatusTooManyRequests, "rate_limit_exceeded")
	assert.Equal(t, "870", w.Header().Get("Retry-After"))

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Too many failed attempts. Try again in 15 minutes.", resp.Message)
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		errCode  string
		expected string
	}{
		{"bad credentials", models.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication failed"},
		{"disabled account looks the same", models.ErrAccountDisabled, http.StatusUnauthorized, "unauthorized", "Authentication failed"},
		{"bad request", models.ErrBadRequest, http.StatusBadRequest, "bad_request", ""},
		{"infrastructure", errors.New("connection refused"), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &handlers.MockAuthService{
				LoginFunc: func(ctx context.Context, username, password, clientIP string) (*services.AuthResponse, error) {
					return nil, tt.err
				},
			}
			h := newHandler(mock, nil)
			req := handlers.NewTestRequest(t, http.MethodPost, "/auth/login", handlers.LoginRequest{Username: "alice", Password: "x"})

			w := serve(t, h.Login, req)

			handlers.AssertErrorResponse(t, w, tt.status, tt.errCode)
			if tt.expected != "" {
				var resp pkghttp.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.expected, resp.Message)
			}
		})
	}
}

func TestLogin_ValidationAndMalformedBody(t *testing.T) {
	h := newHandler(nil, nil)

	w := serve(t, h.Login, handlers.NewTestRequest(t, http.MethodPost, "/auth/login", handlers.LoginRequest{Username: "alice"}))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("Content-Type", "application/json")
	w = serve(t, h.Login, req)
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestLostPassword_AlwaysAccepted(t *testing.T) {
	var gotLogin string
	mock := &handlers.MockAccountService{
		RequestPasswordResetFunc: func(ctx context.Context, login, clientIP string) error {
			gotLogin = login
			return nil
		},
	}
	h := newHandler(nil, mock)
	req := handlers.NewFormRequest(http.MethodPost, "/auth/lost-password", url.Values{"user_login": {"nobody@example.com"}})

	w := serve(t, h.LostPassword, req)

	var resp handlers.MessageResponse
	handlers.AssertJSONResponse(t, w, http.StatusAccepted, &resp)
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, "nobody@example.com", gotLogin)
}

func TestLostPassword_InfrastructureError(t *testing.T) {
	mock := &handlers.MockAccountService{
		RequestPasswordResetFunc: func(ctx context.Context, login, clientIP string) error {
			return models.ErrInternalServer
		},
	}
	h := newHandler(nil, mock)
	req := handlers.NewTestRequest(t, http.MethodPost, "/auth/lost-password", handlers.LostPasswordRequest{UserLogin: "alice"})

	w := serve(t, h.LostPassword, req)

	handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}

func TestRegister_ConflictIndistinguishableFromSuccess(t *testing.T) {
	body := handlers.RegisterRequest{UserLogin: "alice", UserEmail: "alice@example.com", Password: "Str0ng!Passw0rd"}

	created := newHandler(nil, &handlers.MockAccountService{
		RegisterFunc: func(ctx context.Context, username, email, password, clientIP string) (*services.UserResponse, error) {
			return &services.UserResponse{ID: "u1", Username: username, Email: email}, nil
		},
	})
	conflict := newHandler(nil, &handlers.MockAccountService{
		RegisterFunc: func(ctx context.Context, username, email, password, clientIP string) (*services.UserResponse, error) {
			return nil, models.ErrConflict
		},
	})

	w1 := serve(t, created.Register, handlers.NewTestRequest(t, http.MethodPost, "/auth/register", body))
	w2 := serve(t, conflict.Register, handlers.NewTestRequest(t, http.MethodPost, "/auth/register", body))

	assert.Equal(t, http.StatusAccepted, w1.Code)
	assert.Equal(t, w1.Code, w2.Code)
	assert.JSONEq(t, w1.Body.String(), w2.Body.String())
}

func TestRegister_Errors(t *testing.T) {
	h := newHandler(nil, nil)
	w := serve(t, h.Register, handlers.NewTestRequest(t, http.MethodPost, "/auth/register",
		handlers.RegisterRequest{UserLogin: "alice", UserEmail: "not-an-email", Password: "x"}))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")

	weak := newHandler(nil, &handlers.MockAccountService{
		RegisterFunc: func(ctx context.Context, username, email, password, clientIP string) (*services.UserResponse, error) {
			return nil, fmt.Errorf("%w: invalid password", models.ErrBadRequest)
		},
	})
	w = serve(t, weak.Register, handlers.NewTestRequest(t, http.MethodPost, "/auth/register",
		handlers.RegisterRequest{UserLogin: "alice", UserEmail: "alice@example.com", Password: "weak"}))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestResetPassword(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		errCode string
	}{
		{"success", nil, http.StatusOK, ""},
		{"invalid token", models.ErrResetTokenInvalid, http.StatusBadRequest, "bad_request"},
		{"mismatch", models.ErrPasswordMismatch, http.StatusBadRequest, "bad_request"},
		{"weak password", fmt.Errorf("%w: invalid password", models.ErrBadRequest), http.StatusBadRequest, "bad_request"},
		{"infrastructure", errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotToken string
			h := newHandler(nil, &handlers.MockAccountService{
				ResetPasswordFunc: func(ctx context.Context, token, password, confirm, clientIP string) error {
					gotToken = token
					return tt.err
				},
			})
			req := handlers.NewFormRequest(http.MethodPost, "/auth/reset-password",
				url.Values{"key": {"reset-key"}, "pass1": {"N3w!Password"}, "pass2": {"N3w!Password"}})

			w := serve(t, h.ResetPassword, req)

			assert.Equal(t, "reset-key", gotToken)
			if tt.errCode == "" {
				handlers.AssertJSONResponse(t, w, tt.status, nil)
				return
			}
			handlers.AssertErrorResponse(t, w, tt.status, tt.errCode)
		})
	}
}

func TestMe(t *testing.T) {
	h := newHandler(nil, nil)

	w := serve(t, h.Me, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")

	req := handlers.WithAuthContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), "u1", "alice")
	w = serve(t, h.Me, req)

	var resp handlers.MeResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, "alice", resp.Username)
}
