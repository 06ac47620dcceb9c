package models

import "time"

// PasswordReset is a single-use password reset token. Only the hash is stored.
type PasswordReset struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}
