package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByLoginFunc func(ctx context.Context, login string) (*models.User, error)
	CreateFunc     func(ctx context.Context, user *models.User) (*models.User, error)

	mu      sync.Mutex
	lookups int
}

func (m *MockUserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	m.mu.Lock()
	m.lookups++
	m.mu.Unlock()
	if m.GetByLoginFunc != nil {
		return m.GetByLoginFunc(ctx, login)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

// MockPasswordResetRepository implements PasswordResetRepository for testing
type MockPasswordResetRepository struct {
	CreateFunc func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordReset, error)
	RedeemFunc func(ctx context.Context, tokenHash, newPasswordHash string) (*models.User, error)
}

func (m *MockPasswordResetRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordReset, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, tokenHash, expiresAt)
	}
	return &models.PasswordReset{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}, nil
}

func (m *MockPasswordResetRepository) Redeem(ctx context.Context, tokenHash, newPasswordHash string) (*models.User, error) {
	if m.RedeemFunc != nil {
		return m.RedeemFunc(ctx, tokenHash, newPasswordHash)
	}
	return nil, models.ErrResetTokenInvalid
}

type sentReset struct {
	Email     string
	Token     string
	ExpiresAt time.Time
}

// MockMailer captures reset emails
type MockMailer struct {
	Err  error
	Sent []sentReset
}

func (m *MockMailer) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, sentReset{Email: email, Token: token, ExpiresAt: expiresAt})
	return nil
}
