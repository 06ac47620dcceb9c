package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		shouldFail bool
		reason     string
	}{
		{name: "valid strong password", password: "SecureP@ss123"},
		{name: "valid with symbols", password: "MyP@ssw0rd!"},
		{name: "too short", password: "Pass@1", shouldFail: true, reason: "at least"},
		{name: "missing uppercase", password: "securepass@123", shouldFail: true, reason: "uppercase"},
		{name: "missing lowercase", password: "SECUREPASS@123", shouldFail: true, reason: "lowercase"},
		{name: "missing digit", password: "SecurePass@xyz", shouldFail: true, reason: "digit"},
		{name: "missing special character", password: "SecurePass123", shouldFail: true, reason: "special"},
		{name: "common password rejected", password: "Password123!", shouldFail: true, reason: "too common"},
		{name: "too long", password: "Aa1@" + strings.Repeat("x", 130), shouldFail: true, reason: "at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)

			if !tt.shouldFail {
				assert.NoError(t, err)
				return
			}

			var vErr *PasswordValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, "invalid password", err.Error(), "client-facing message stays generic")
			assert.Contains(t, strings.Join(vErr.Errors, "; "), tt.reason)
		})
	}
}

func TestHashAndComparePassword(t *testing.T) {
	password := "SecureP@ss123"

	hash, err := HashPasswordWithCost(password, bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, password, hash)

	assert.NoError(t, ComparePassword(hash, password))
	assert.Error(t, ComparePassword(hash, "WrongPassword123!"))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPasswordWithCost("", bcrypt.MinCost)
	assert.Error(t, err)
}

func TestGenerateResetToken(t *testing.T) {
	token, hash, err := GenerateResetToken()
	require.NoError(t, err)

	assert.Len(t, token, 43, "32 bytes in unpadded base64url")
	assert.Len(t, hash, 64)
	assert.Equal(t, HashToken(token), hash)

	other, _, err := GenerateResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}
