package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/loginguard/internal/guard"
	"github.com/BradenHooton/loginguard/internal/models"
	pkgauth "github.com/BradenHooton/loginguard/pkg/auth"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

// PasswordResetRepository stores single-use reset tokens
type PasswordResetRepository interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordReset, error)
	Redeem(ctx context.Context, tokenHash, newPasswordHash string) (*models.User, error)
}

// AccountService handles registration and password recovery
type AccountService struct {
	users       UserRepository
	resets      PasswordResetRepository
	mailer      Mailer
	guard       *guard.Guard
	resetExpiry time.Duration
	hashCost    int
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAccountService creates a new AccountService
func NewAccountService(users UserRepository, resets PasswordResetRepository, mailer Mailer, g *guard.Guard, resetExpiry time.Duration, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AccountService {
	return &AccountService{
		users:       users,
		resets:      resets,
		mailer:      mailer,
		guard:       g,
		resetExpiry: resetExpiry,
		hashCost:    pkgauth.BcryptCost,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// SetHashCost overrides the bcrypt cost used for new passwords
func (s *AccountService) SetHashCost(cost int) {
	s.hashCost = cost
}

// Register creates an active subscriber account
func (s *AccountService) Register(ctx context.Context, username, email, password, clientIP string) (*UserResponse, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrBadRequest, err)
	}

	hash, err := pkgauth.HashPasswordWithCost(password, s.hashCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.users.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	s.auditLogger.LogAccountAction(ctx, pkglogger.EventUserRegistered, user.ID, clientIP)

	return userModelToResponse(user), nil
}

// RequestPasswordReset emails a reset link when login names an account. Unknown
// logins return nil so callers cannot tell whether the account exists.
func (s *AccountService) RequestPasswordReset(ctx context.Context, login, clientIP string) error {
	login = strings.TrimSpace(login)
	if login == "" {
		return models.ErrBadRequest
	}

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown account")
			return nil
		}
		s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if user.Status != models.UserStatusActive {
		s.logger.Info("password reset skipped for inactive account", slog.String("user_id", user.ID))
		return nil
	}

	token, tokenHash, err := pkgauth.GenerateResetToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.resetExpiry)
	if _, err := s.resets.Create(ctx, user.ID, tokenHash, expiresAt); err != nil {
		s.logger.Error("failed to store reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, token, expiresAt); err != nil {
		s.logger.Error("failed to send reset email", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventPasswordResetReq, user.ID, clientIP)
	return nil
}

// ResetPassword redeems token and sets a new password. Lockout counters for the
// account's username and e-mail from clientIP are cleared afterwards.
func (s *AccountService) ResetPassword(ctx context.Context, token, password, confirm, clientIP string) error {
	if token == "" {
		return models.ErrResetTokenInvalid
	}
	if password != confirm {
		return models.ErrPasswordMismatch
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return fmt.Errorf("%w: %w", models.ErrBadRequest, err)
	}

	hash, err := pkgauth.HashPasswordWithCost(password, s.hashCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	user, err := s.resets.Redeem(ctx, pkgauth.HashToken(token), hash)
	if err != nil {
		if errors.Is(err, models.ErrResetTokenInvalid) {
			s.logger.Info("password reset with invalid token")
			return models.ErrResetTokenInvalid
		}
		s.logger.Error("failed to redeem reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.guard.Clear(ctx, user.Username, clientIP)
	s.guard.Clear(ctx, user.Email, clientIP)

	s.logger.Info("password reset completed", slog.String("user_id", user.ID))
	s.auditLogger.LogAccountAction(ctx, pkglogger.EventPasswordReset, user.ID, clientIP)
	return nil
}
