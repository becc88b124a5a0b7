// Package domain defines the core cryptographic domain models for envelope encryption.
//
// It implements a two-tier key hierarchy: Master Key → DEK → Payload. Each payload is
// sealed under its own Data Encryption Key, and the DEK is wrapped by a versioned master
// key. Destroying the wrapped DEK makes the payload permanently unrecoverable.
package domain

// Algorithm represents the cryptographic algorithm used for encryption.
//
// All supported algorithms provide Authenticated Encryption with Associated Data (AEAD):
// 256-bit keys, 96-bit nonces and a 128-bit tag appended to the ciphertext.
type Algorithm string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm.
	// Hardware accelerated on CPUs with AES-NI. Master keys always wrap with it.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents the ChaCha20-Poly1305 authenticated encryption algorithm.
	// Constant-time in software; preferred on hosts without AES acceleration.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

const (
	// KeySize is the size in bytes of every master key and DEK.
	KeySize = 32

	// NonceSize is the size in bytes of every AEAD nonce.
	NonceSize = 12

	// TagSize is the size in bytes of the authentication tag appended to ciphertexts.
	TagSize = 16
)

// ParseAlgorithm converts a configuration string into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AESGCM, ChaCha20:
		return Algorithm(s), nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
