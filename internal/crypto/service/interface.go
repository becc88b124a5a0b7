// Package service provides the cryptographic services behind crypto-shredding.
//
// It implements the envelope cipher (AES-256-GCM, ChaCha20-Poly1305 with explicit nonces)
// and the master key manager that wraps, unwraps and rotates per-record DEKs.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Seal encrypts plaintext under nonce and binds aad. The tag is appended to the result.
	Seal(nonce, plaintext, aad []byte) ([]byte, error)

	// Open verifies and decrypts ciphertext. Any mismatch yields ErrAuthFailure.
	Open(nonce, ciphertext, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// EnvelopeCipher seals and opens payloads and DEKs. It is a pure function of its inputs
// and keeps no state between calls.
type EnvelopeCipher interface {
	// Seal encrypts plaintext with a 32-byte key and a 12-byte nonce, binding aad.
	Seal(alg cryptoDomain.Algorithm, key, nonce, plaintext, aad []byte) ([]byte, error)

	// Open reverses Seal. Tampering, a wrong key, a wrong nonce or different aad all yield
	// ErrAuthFailure without telling which.
	Open(alg cryptoDomain.Algorithm, key, nonce, ciphertext, aad []byte) ([]byte, error)
}

// MasterKeyManager owns the master key chain and mediates every use of master key material.
type MasterKeyManager interface {
	// ActiveVersion returns the version new wraps are performed under.
	ActiveVersion() uint

	// RetiredVersions returns the versions still held only for unwrapping.
	RetiredVersions() []uint

	// Wrap seals dek under the active master key. The release func must be called once
	// the result is stored or discarded so retired versions can be forgotten safely.
	Wrap(dek, aad []byte) (cryptoDomain.WrappedDek, func(), error)

	// Unwrap opens a wrapped DEK with the master key version it names.
	Unwrap(wrapped cryptoDomain.WrappedDek, aad []byte) ([]byte, error)

	// Rotate installs newKey as the next active version and retires the previous one.
	Rotate(newKey []byte) (uint, error)

	// WaitIdle blocks until no wrap under version is in flight.
	WaitIdle(ctx context.Context, version uint) error

	// Forget zeroizes and drops a retired version.
	Forget(version uint) error
}

// KMSService opens KMS keepers used to decrypt master keys at startup.
type KMSService interface {
	// OpenKeeper opens a keeper for keyURI.
	// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}
