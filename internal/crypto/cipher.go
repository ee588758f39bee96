// Package crypto provides authenticated encryption for stored mail tokens.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// ivSize is the AES-GCM initialization vector size. A fresh random IV is
	// generated for every encryption and never reused.
	ivSize = 16

	// tagSize is the GCM authentication tag size. Decryption rejects tags of
	// any other length instead of truncating or padding them.
	tagSize = 16
)

// ErrDecryption indicates ciphertext that is malformed, tampered with, or
// encrypted under a different key.
var ErrDecryption = errors.New("decryption failed")

// TokenCipher encrypts and decrypts token strings with AES-256-GCM under a
// single static key. The wire format is three colon-separated hex segments:
// iv:tag:ciphertext.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher creates a cipher from a 32-byte key.
func NewTokenCipher(key []byte) (*TokenCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &TokenCipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV. Two encryptions of the
// same plaintext never produce the same output.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)

	// Seal appends the tag to the ciphertext; split them for the wire format.
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	), nil
}

// Decrypt opens a sealed token string. Any malformed segment, wrong part
// count, unexpected IV or tag length, or failed tag verification returns an
// error wrapping ErrDecryption; corrupted plaintext is never returned.
func (c *TokenCipher) Decrypt(sealed string) (string, error) {
	parts := strings.Split(sealed, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: expected 3 parts, got %d", ErrDecryption, len(parts))
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: malformed IV", ErrDecryption)
	}
	if len(iv) != ivSize {
		return "", fmt.Errorf("%w: unexpected IV length %d", ErrDecryption, len(iv))
	}

	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: malformed authentication tag", ErrDecryption)
	}
	if len(tag) != tagSize {
		return "", fmt.Errorf("%w: unexpected authentication tag length %d", ErrDecryption, len(tag))
	}

	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext", ErrDecryption)
	}

	plaintext, err := c.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}

	return string(plaintext), nil
}
