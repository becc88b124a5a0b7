package domain

import (
	"github.com/allisson/cryptoshred/internal/errors"
)

// Cryptographic operation error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors so callers
// can match either the precise failure or its category.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrInvalidNonceSize indicates a nonce is not exactly 12 bytes.
	ErrInvalidNonceSize = errors.Wrap(errors.ErrInvalidInput, "invalid nonce size")

	// ErrAuthFailure indicates an AEAD tag did not verify.
	//
	// It covers tampered ciphertext, a wrong key, a wrong nonce and mismatched
	// associated data. The cause is deliberately not disclosed. It always signals
	// corruption or a programming bug and must never be retried silently.
	ErrAuthFailure = errors.Wrap(errors.ErrIntegrity, "authentication failed")

	// ErrMasterKeyVersionUnknown indicates a wrapped DEK references a master key version
	// that is not (or no longer) held by the key chain. Seeing it for a live entry means
	// a retired key was forgotten before every entry was rewrapped.
	ErrMasterKeyVersionUnknown = errors.Wrap(errors.ErrIntegrity, "master key version unknown")

	// ErrMasterKeyVersionExists indicates an attempt to add a master key version twice.
	ErrMasterKeyVersionExists = errors.Wrap(errors.ErrConflict, "master key version already exists")

	// ErrActiveMasterKeyForget indicates an attempt to forget the active master key.
	ErrActiveMasterKeyForget = errors.Wrap(errors.ErrInvalidInput, "cannot forget the active master key")

	// ErrMasterKeysNotSet indicates no master key source is configured.
	ErrMasterKeysNotSet = errors.Wrap(errors.ErrInvalidInput, "MASTER_KEYS not set")

	// ErrActiveMasterKeyVersionNotSet indicates ACTIVE_MASTER_KEY_VERSION is missing.
	ErrActiveMasterKeyVersionNotSet = errors.Wrap(errors.ErrInvalidInput, "ACTIVE_MASTER_KEY_VERSION not set")

	// ErrInvalidMasterKeysFormat indicates a MASTER_KEYS entry is not "version:base64key".
	ErrInvalidMasterKeysFormat = errors.Wrap(errors.ErrInvalidInput, "invalid MASTER_KEYS format")

	// ErrInvalidMasterKeyBase64 indicates a MASTER_KEYS value is not valid base64.
	ErrInvalidMasterKeyBase64 = errors.Wrap(errors.ErrInvalidInput, "invalid master key base64")

	// ErrActiveMasterKeyNotFound indicates the active version is not among the loaded keys.
	ErrActiveMasterKeyNotFound = errors.Wrap(errors.ErrInvalidInput, "active master key not found")

	// ErrInvalidPassphraseSalt indicates the passphrase salt is too short.
	ErrInvalidPassphraseSalt = errors.Wrap(errors.ErrInvalidInput, "invalid master key salt")
)
