package service

import (
	"golang.org/x/crypto/argon2"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
)

// Argon2id parameters for deriving master keys from passphrases.
const (
	kdfTime     = 3
	kdfMemory   = 64 * 1024
	kdfThreads  = 4
	minSaltSize = 16
)

// DeriveMasterKey stretches passphrase into a 32-byte master key with Argon2id.
// The salt must be at least 16 bytes and must stay stable across restarts.
func DeriveMasterKey(passphrase, salt []byte) ([]byte, error) {
	if len(salt) < minSaltSize {
		return nil, cryptoDomain.ErrInvalidPassphraseSalt
	}
	return argon2.IDKey(passphrase, salt, kdfTime, kdfMemory, kdfThreads, cryptoDomain.KeySize), nil
}
