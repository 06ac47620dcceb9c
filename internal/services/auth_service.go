package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/guard"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/pipeline"
	pkgauth "github.com/BradenHooton/loginguard/pkg/auth"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

// UserRepository defines the user lookups the services depend on
type UserRepository interface {
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	tm          *auth.TokenManager
	pipeline    *pipeline.Pipeline
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService. Only rejected credentials count as
// failed attempts; infrastructure errors and disabled accounts do not.
func NewAuthService(repo UserRepository, tm *auth.TokenManager, g *guard.Guard, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	s := &AuthService{
		repo:        repo,
		tm:          tm,
		logger:      logger,
		auditLogger: auditLogger,
	}

	s.pipeline = pipeline.New(logger, pipeline.WithFailureClassifier(IsCredentialFailure))
	g.Attach(s.pipeline)
	s.pipeline.
		OnFailure("audit", func(ctx context.Context, a pipeline.Attempt) {
			auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventLoginFailed,
				Username:      a.Username,
				IPAddress:     a.ClientIP,
				FailureReason: "invalid_credentials",
			})
		}).
		OnSuccess("audit", func(ctx context.Context, a pipeline.Attempt) {
			auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
				EventType: pkglogger.EventLoginSuccess,
				Username:  a.Username,
				IPAddress: a.ClientIP,
				Success:   true,
			})
		})

	return s
}

// IsCredentialFailure reports whether err is a rejected username/password pair
func IsCredentialFailure(err error) bool {
	return errors.Is(err, models.ErrUnauthorized)
}

// Pipeline exposes the login pipeline so further stages can be registered
func (s *AuthService) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// AuthResponse represents the response from a successful login
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int           `json:"expires_in"`
	User        *UserResponse `json:"user"`
}

// Login authenticates username (or e-mail) and password from clientIP. A locked
// out pair yields a *guard.LockedOutError without touching the user store.
func (s *AuthService) Login(ctx context.Context, username, password, clientIP string) (*AuthResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, models.ErrBadRequest
	}

	attempt := pipeline.Attempt{Username: username, ClientIP: clientIP}

	resp, err := pipeline.Run(ctx, s.pipeline, attempt, func(ctx context.Context) (*AuthResponse, error) {
		return s.verify(ctx, username, password)
	})
	if err != nil {
		var locked *guard.LockedOutError
		if errors.As(err, &locked) {
			s.logger.Info("login blocked by lockout", slog.String("ip_address", clientIP))
			s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventLoginLockedOut,
				Username:      username,
				IPAddress:     clientIP,
				FailureReason: "locked_out",
				RetryAfter:    locked.Decision.RetryAfter,
			})
		}
		return nil, err
	}

	return resp, nil
}

func (s *AuthService) verify(ctx context.Context, login, password string) (*AuthResponse, error) {
	user, err := s.repo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.CompareDummy(password)
			s.logger.Info("login failed: invalid credentials")
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by login", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login failed: invalid credentials", slog.String("user_id", user.ID))
		return nil, models.ErrUnauthorized
	}

	if user.Status != models.UserStatusActive {
		s.logger.Info("login blocked due to account state",
			slog.String("user_id", user.ID),
			slog.String("status", user.Status))
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLoginFailed,
			UserID:        user.ID,
			FailureReason: "account_disabled",
		})
		return nil, models.ErrAccountDisabled
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))

	return &AuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tm.AccessTokenExpiry().Seconds()),
		User:        userModelToResponse(user),
	}, nil
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}
}
