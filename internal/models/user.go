package models

import (
	"time"
)

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

type User struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string
	Role              string // e.g., "subscriber", "admin"
	Status            string // "active", "disabled"
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PasswordChangedAt *time.Time
}
