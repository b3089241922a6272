package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// sessionTokenPrefix is the prefix used for generated session tokens.
const sessionTokenPrefix = "ahs_"

// GenerateSessionToken creates a new random opaque session token string.
func GenerateSessionToken() (token string, err error) {
	secret := make([]byte, 32)
	if _, err = io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return sessionTokenPrefix + hex.EncodeToString(secret), nil
}

// GenerateCSRFToken creates a new random CSRF token string.
func GenerateCSRFToken() (string, error) {
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return hex.EncodeToString(secret), nil
}

// HashToken returns the hex-encoded SHA-256 digest of a token. Only the
// digest is stored server-side.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
