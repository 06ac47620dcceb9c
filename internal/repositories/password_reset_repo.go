package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PasswordResetRepository handles password reset token data access
type PasswordResetRepository struct {
	db *database.DB
}

// NewPasswordResetRepository creates a new PasswordResetRepository
func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create stores a reset token hash for userID
func (r *PasswordResetRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordReset, error) {
	reset := &models.PasswordReset{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}

	query := `
		INSERT INTO password_resets (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	if err := r.db.Pool.QueryRow(ctx, query, reset.ID, reset.UserID, reset.TokenHash, reset.ExpiresAt).Scan(&reset.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create password reset: %w", database.MapPostgresError(err))
	}

	return reset, nil
}

// Redeem consumes the reset token matching tokenHash and stores the new password
// hash in one transaction. Every other outstanding token for the user is
// invalidated as well. Unknown, used or expired tokens yield models.ErrResetTokenInvalid.
func (r *PasswordResetRepository) Redeem(ctx context.Context, tokenHash, newPasswordHash string) (*models.User, error) {
	var user *models.User

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var userID string
		err := tx.QueryRow(ctx, `
			SELECT user_id FROM password_resets
			WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
			FOR UPDATE
		`, tokenHash).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrResetTokenInvalid
		}
		if err != nil {
			return fmt.Errorf("failed to look up reset token: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE password_resets SET used_at = NOW()
			WHERE user_id = $1 AND used_at IS NULL
		`, userID); err != nil {
			return fmt.Errorf("failed to consume reset tokens: %w", err)
		}

		user, err = scanUserRow(tx.QueryRow(ctx, `
			UPDATE users SET password_hash = $1, password_changed_at = NOW(), updated_at = NOW()
			WHERE id = $2
			RETURNING `+userColumns, newPasswordHash, userID))
		if err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// DeleteExpired removes reset tokens that can no longer be redeemed
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM password_resets WHERE expires_at <= NOW() OR used_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired password resets: %w", err)
	}
	return tag.RowsAffected(), nil
}
