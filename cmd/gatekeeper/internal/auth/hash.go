package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken creates a SHA256 hash of a token string. Use it wherever a token
// or secret needs to be logged or used as a cache key.
func HashToken(token string) string {
	hasher := sha256.New()
	hasher.Write([]byte(token))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Fingerprint returns a short prefix of HashToken suitable for log fields.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return HashToken(token)[:12]
}
