package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrCiphertextTooShort indicates a ciphertext shorter than its nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Encryptor seals and opens secrets with AES-256-GCM. The key material is
// derived from the configured passphrase via SHA-256.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor builds an Encryptor from a non-empty passphrase.
func NewEncryptor(passphrase string) (*Encryptor, error) {
	if passphrase == "" {
		return nil, errors.New("security: empty encryption key")
	}
	key := sha256.Sum256([]byte(passphrase))
	block, errCipher := aes.NewCipher(key[:])
	if errCipher != nil {
		return nil, fmt.Errorf("security: new cipher: %w", errCipher)
	}
	aead, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return nil, fmt.Errorf("security: new gcm: %w", errGCM)
	}
	return &Encryptor{aead: aead}, nil
}

// Encrypt seals plaintext and returns a base64 string of nonce||ciphertext.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, errRead := io.ReadFull(rand.Reader, nonce); errRead != nil {
		return "", fmt.Errorf("security: nonce: %w", errRead)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	raw, errDecode := base64.StdEncoding.DecodeString(encoded)
	if errDecode != nil {
		return "", fmt.Errorf("security: decode ciphertext: %w", errDecode)
	}
	if len(raw) < e.aead.NonceSize() {
		return "", ErrCiphertextTooShort
	}
	nonce, ciphertext := raw[:e.aead.NonceSize()], raw[e.aead.NonceSize():]
	plaintext, errOpen := e.aead.Open(nil, nonce, ciphertext, nil)
	if errOpen != nil {
		return "", fmt.Errorf("security: decrypt: %w", errOpen)
	}
	return string(plaintext), nil
}
