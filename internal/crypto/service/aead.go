package service

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
)

// aeadCipher adapts a cipher.AEAD to explicit caller-supplied nonces.
//
// Instances are stateless and safe for concurrent use.
type aeadCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates an AES-256-GCM cipher. The key must be exactly 32 bytes.
func NewAESGCM(key []byte) (AEAD, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &aeadCipher{aead: aead}, nil
}

// NewChaCha20Poly1305 creates a ChaCha20-Poly1305 cipher. The key must be exactly 32 bytes.
func NewChaCha20Poly1305(key []byte) (AEAD, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
	}

	return &aeadCipher{aead: aead}, nil
}

func (a *aeadCipher) Seal(nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != a.aead.NonceSize() {
		return nil, cryptoDomain.ErrInvalidNonceSize
	}
	return a.aead.Seal(nil, nonce, plaintext, aad), nil
}

func (a *aeadCipher) Open(nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != a.aead.NonceSize() {
		return nil, cryptoDomain.ErrInvalidNonceSize
	}
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, cryptoDomain.ErrAuthFailure
	}
	return plaintext, nil
}
