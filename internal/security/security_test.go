package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, errHash := HashPassword("a-long-password")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if hash == "a-long-password" {
		t.Fatal("password stored in plaintext")
	}
	if !CheckPassword(hash, "a-long-password") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "a-wrong-password") {
		t.Fatal("wrong password accepted")
	}
}

func TestValidatePasswordLengthBounds(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("short password: err = %v, want ErrWeakPassword", err)
	}
	if err := ValidatePassword(strings.Repeat("x", MaxPasswordLength+1)); err == nil {
		t.Fatal("over-long password accepted")
	}
	if err := ValidatePassword("long-enough-password"); err != nil {
		t.Fatalf("valid password rejected: %v", err)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	token, errGenerate := GenerateToken("secret", 42, "alice", "alice@example.com", time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}

	claims, errParse := ParseToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, errWrong := ParseToken("other-secret", token); errWrong == nil {
		t.Fatal("token accepted with the wrong secret")
	}
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	token, errGenerate := GenerateToken("secret", 7, "bob", "", -time.Minute)
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}
	if _, errParse := ParseToken("secret", token); errParse == nil {
		t.Fatal("expired token accepted")
	}
}

func TestSessionTokenShape(t *testing.T) {
	token, errToken := GenerateSessionToken()
	if errToken != nil {
		t.Fatalf("generate: %v", errToken)
	}
	if !strings.HasPrefix(token, "ahs_") {
		t.Fatalf("token %q lacks the ahs_ prefix", token)
	}

	other, _ := GenerateSessionToken()
	if token == other {
		t.Fatal("two generated tokens collided")
	}
	if HashToken(token) == token {
		t.Fatal("hash equals the raw token")
	}
	if HashToken(token) != HashToken(token) {
		t.Fatal("hash is not deterministic")
	}
}

func TestEncryptorRoundTrip(t *testing.T) {
	enc, errNew := NewEncryptor("a-passphrase")
	if errNew != nil {
		t.Fatalf("new: %v", errNew)
	}

	ciphertext, errEncrypt := enc.Encrypt("sk-super-secret")
	if errEncrypt != nil {
		t.Fatalf("encrypt: %v", errEncrypt)
	}
	if strings.Contains(ciphertext, "sk-super-secret") {
		t.Fatal("ciphertext leaks the plaintext")
	}

	plaintext, errDecrypt := enc.Decrypt(ciphertext)
	if errDecrypt != nil {
		t.Fatalf("decrypt: %v", errDecrypt)
	}
	if plaintext != "sk-super-secret" {
		t.Fatalf("plaintext = %q", plaintext)
	}

	// A different passphrase must not decrypt.
	other, _ := NewEncryptor("another-passphrase")
	if _, errWrong := other.Decrypt(ciphertext); errWrong == nil {
		t.Fatal("decrypted with the wrong passphrase")
	}
}

func TestEncryptorRejectsTruncatedCiphertext(t *testing.T) {
	enc, errNew := NewEncryptor("a-passphrase")
	if errNew != nil {
		t.Fatalf("new: %v", errNew)
	}
	if _, errDecrypt := enc.Decrypt("AAAA"); errDecrypt == nil {
		t.Fatal("truncated ciphertext accepted")
	}
}
