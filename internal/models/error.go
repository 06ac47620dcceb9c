package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountDisabled = errors.New("account is disabled")

	// Login guard errors
	ErrLockedOut        = errors.New("too many failed login attempts")
	ErrStoreUnavailable = errors.New("attempt store unavailable")

	// Password reset errors
	ErrResetTokenInvalid = errors.New("password reset token is invalid or expired")
	ErrPasswordMismatch  = errors.New("passwords do not match")
)
