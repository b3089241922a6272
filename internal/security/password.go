package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost defines the bcrypt work factor.
const bcryptCost = 12

// Password length bounds; bcrypt truncates beyond 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// ErrWeakPassword indicates a password outside the accepted length bounds.
var ErrWeakPassword = errors.New("password must be between 8 and 72 characters")

// ValidatePassword checks password length bounds before hashing.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
