package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"time"
)

// Form actions protected by nonces
const (
	ActionLostPassword  = "lostpassword"
	ActionRegister      = "register"
	ActionResetPassword = "resetpass"
)

// DefaultNonceLifetime is how long a nonce stays valid at most
const DefaultNonceLifetime = 12 * time.Hour

const nonceLength = 20

// NonceManager issues short-lived form nonces bound to an action and a session.
// A nonce is valid for the tick it was issued in and the following one, so its
// lifetime lies between half and all of the configured lifetime.
type NonceManager struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewNonceManager creates a NonceManager. A non-positive lifetime uses DefaultNonceLifetime.
func NewNonceManager(secret string, lifetime time.Duration) *NonceManager {
	if lifetime <= 0 {
		lifetime = DefaultNonceLifetime
	}
	return &NonceManager{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// SetClock overrides the time source
func (m *NonceManager) SetClock(now func() time.Time) {
	m.now = now
}

// Generate returns the nonce for action and session in the current tick
func (m *NonceManager) Generate(action, session string) string {
	return m.sign(m.tick(), action, session)
}

// Verify reports whether nonce was issued for action and session in the current or previous tick
func (m *NonceManager) Verify(nonce, action, session string) bool {
	if len(nonce) != nonceLength || session == "" {
		return false
	}

	tick := m.tick()
	for _, t := range []int64{tick, tick - 1} {
		expected := m.sign(t, action, session)
		if subtle.ConstantTimeCompare([]byte(nonce), []byte(expected)) == 1 {
			return true
		}
	}
	return false
}

func (m *NonceManager) tick() int64 {
	half := (m.lifetime / 2).Nanoseconds()
	n := m.now().UnixNano()
	// ceil(now / half)
	return (n + half - 1) / half
}

func (m *NonceManager) sign(tick int64, action, session string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(action))
	mac.Write([]byte{'|'})
	mac.Write([]byte(session))
	return hex.EncodeToString(mac.Sum(nil))[:nonceLength]
}
