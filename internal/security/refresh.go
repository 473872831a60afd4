package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// refreshBytes is the entropy of a refresh secret (512 bits).
const refreshBytes = 64

// NewRefreshSecret returns a random opaque refresh token, base64url encoded
// without padding.
func NewRefreshSecret() (string, error) {
	buf := make([]byte, refreshBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashRefresh returns the SHA-256 hex digest stored in place of raw.
func HashRefresh(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
