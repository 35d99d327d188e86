// Package seal is the cryptographic boundary of the memory system.
// It owns the single persistent AES-256-GCM key and the encrypt/decrypt
// primitives applied to every document before it reaches storage.
//
// Key bytes never leave this package: Keychain hands out a ready *Cipher,
// not raw key material. Losing the persisted key permanently orphans all
// existing ciphertext — that is an accepted failure mode, not a bug.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// Wire format: base64(nonce || ciphertext || tag).
const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// NonceSize is the GCM nonce length in bytes. Drawn fresh from
	// crypto/rand on every Encrypt; nonces must never repeat under one key.
	NonceSize = 12

	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

// Sentinel errors for the crypto boundary.
var (
	// ErrKeyUnavailable means the key could not be fetched or created.
	// Fatal to any encrypt/decrypt path; never retried here.
	ErrKeyUnavailable = errors.New("encryption key unavailable")

	// ErrDecrypt means a stored blob failed authentication: wrong key,
	// corrupted or truncated ciphertext. Malformed input never surfaces
	// as anything else.
	ErrDecrypt = errors.New("decryption failed")
)

// Cipher performs authenticated encryption with a fixed key.
type Cipher struct {
	aead cipher.AEAD
}

// New creates a Cipher from raw key material. The key must be KeySize bytes.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrKeyUnavailable, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the
// encoded blob: base64(nonce || ciphertext || tag).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("draw nonce: %w", err)
	}

	// Seal appends ciphertext+tag to the nonce slice, giving the wire
	// layout directly.
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt and returns the plaintext.
// Any malformed or tampered input yields ErrDecrypt.
func (c *Cipher) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", ErrDecrypt)
	}
	if len(raw) < NonceSize+TagSize {
		return "", fmt.Errorf("%w: blob too short", ErrDecrypt)
	}

	nonce, ciphertext := raw[:NonceSize], raw[NonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication error", ErrDecrypt)
	}
	return string(plaintext), nil
}
