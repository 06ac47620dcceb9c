package guard

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyPrefix namespaces guard records within a shared store
const KeyPrefix = "lock_"

// Key derives the store key for a (username, client IP) pair.
// The digest is 128 bits of SHA-256 and is only ever used for lookup.
func Key(username, clientIP string) string {
	sum := sha256.Sum256([]byte(normalizeUsername(username) + "\x00" + clientIP))
	return KeyPrefix + hex.EncodeToString(sum[:16])
}

// normalizeUsername trims surrounding whitespace and folds case so that
// "Alice" and "alice " share one counter
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
