// Package crypto provides symmetric encryption for tokens at rest.
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

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyIterations = 100000
	keyLength     = 32
)

// ErrDecryptionFailed is returned when ciphertext cannot be authenticated
// or decoded. Tampered input never yields plaintext.
var ErrDecryptionFailed = errors.New("decryption failed")

// TokenCipher encrypts and decrypts token strings with AES-256-GCM using a
// key derived from the configured secret and salt via PBKDF2. It is
// stateless after construction and safe for concurrent use.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher derives the cipher key from secret and salt. The secret
// must never be logged by callers.
func NewTokenCipher(secret, salt string) (*TokenCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption secret is required")
	}
	if salt == "" {
		return nil, fmt.Errorf("encryption salt is required")
	}

	key := pbkdf2.Key([]byte(secret), []byte(salt), keyIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &TokenCipher{aead: aead}, nil
}

// Encrypt encrypts plaintext and returns a base64 string of nonce||sealed.
// An empty plaintext passes through unchanged: tokens are sometimes
// legitimately absent and must round-trip as "".
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Invalid or tampered ciphertext returns
// ErrDecryptionFailed rather than garbage plaintext.
func (c *TokenCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}
