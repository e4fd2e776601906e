package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Prefix marks a stored value as encrypted. Values without it are treated as
// plaintext by callers.
const Prefix = "enc:"

var ErrNoKey = errors.New("secrets: no key configured")

// Box seals and opens short secrets (webhook auth headers) with AES-256-GCM.
// The nonce is prepended to the ciphertext and the whole blob is base64.
type Box struct {
	aead cipher.AEAD
}

// NewBox builds a Box from a hex-encoded 32-byte key. An empty key yields a
// Box that refuses to open anything, so a missing SECRET_KEY surfaces as a
// delivery error instead of a startup crash.
func NewBox(hexKey string) (*Box, error) {
	if hexKey == "" {
		return &Box{}, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("secrets: invalid key encoding: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("secrets: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Encrypt seals a plaintext value, returning it with the storage prefix.
func (b *Box) Encrypt(plaintext string) (string, error) {
	if b.aead == nil {
		return "", ErrNoKey
	}
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a prefixed value produced by Encrypt.
func (b *Box) Decrypt(ciphertext string) (string, error) {
	if b.aead == nil {
		return "", ErrNoKey
	}
	if len(ciphertext) >= len(Prefix) && ciphertext[:len(Prefix)] == Prefix {
		ciphertext = ciphertext[len(Prefix):]
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("secrets: invalid ciphertext encoding: %w", err)
	}
	if len(raw) < b.aead.NonceSize() {
		return "", errors.New("secrets: ciphertext too short")
	}
	nonce, sealed := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
	plain, err := b.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("secrets: open failed: %w", err)
	}
	return string(plain), nil
}

// IsEncrypted reports whether a stored value carries the encryption prefix.
func IsEncrypted(value string) bool {
	return len(value) >= len(Prefix) && value[:len(Prefix)] == Prefix
}
