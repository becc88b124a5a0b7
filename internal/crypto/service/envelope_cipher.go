package service

import (
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
)

// EnvelopeCipherService implements EnvelopeCipher on top of an AEADManager.
type EnvelopeCipherService struct {
	aeadManager AEADManager
}

// NewEnvelopeCipher creates a new EnvelopeCipherService.
func NewEnvelopeCipher(aeadManager AEADManager) *EnvelopeCipherService {
	return &EnvelopeCipherService{aeadManager: aeadManager}
}

// Seal encrypts plaintext with key and nonce, binding aad.
func (e *EnvelopeCipherService) Seal(
	alg cryptoDomain.Algorithm,
	key, nonce, plaintext, aad []byte,
) ([]byte, error) {
	c, err := e.aeadManager.CreateCipher(key, alg)
	if err != nil {
		return nil, err
	}
	return c.Seal(nonce, plaintext, aad)
}

// Open verifies and decrypts ciphertext with key and nonce, checking aad.
func (e *EnvelopeCipherService) Open(
	alg cryptoDomain.Algorithm,
	key, nonce, ciphertext, aad []byte,
) ([]byte, error) {
	c, err := e.aeadManager.CreateCipher(key, alg)
	if err != nil {
		return nil, err
	}
	return c.Open(nonce, ciphertext, aad)
}

// GenerateKey returns 32 bytes from the system CSPRNG.
func GenerateKey() ([]byte, error) {
	key := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// GenerateNonce returns 12 bytes from the system CSPRNG.
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, cryptoDomain.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}
