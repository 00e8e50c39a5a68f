package crypto

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

// minSecretLength matches the session-secret requirement: the AES key is
// derived from the secret, so a weak secret weakens every cookie.
const minSecretLength = 32

// ErrInvalidCiphertext is returned when input cannot be decrypted: wrong key,
// truncated data, or a tampered/forged payload. Callers treat it as "no data"
// rather than surfacing it, so a forged cookie never produces a useful oracle.
var ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")

// Sealer handles AES-256-GCM authenticated encryption for cookie payloads.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 32-byte AES key from the given secret (SHA-256) and
// returns a Sealer. The secret must be at least 32 characters.
func NewSealer(secret string) (*Sealer, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("secret must be at least %d characters, got %d", minSecretLength, len(secret))
	}

	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext and returns base64url-encoded ciphertext with a
// prepended random nonce. The output is safe to place in a cookie value.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a value produced by Seal. Any malformed, truncated, or
// tampered input returns ErrInvalidCiphertext.
func (s *Sealer) Open(encoded string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	return plaintext, nil
}
