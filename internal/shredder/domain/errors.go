package domain

import (
	"github.com/allisson/cryptoshred/internal/errors"
)

// Crypto-shred error definitions.
var (
	// ErrErased indicates the record's wrapped DEK is gone, either because it was shredded
	// or because it never existed. Callers must treat both as permanently erased.
	ErrErased = errors.Wrap(errors.ErrNotFound, "record erased")

	// ErrEntryNotFound indicates the key store holds no entry for the record id.
	ErrEntryNotFound = errors.Wrap(errors.ErrNotFound, "wrapped key entry not found")

	// ErrDuplicateRecordID indicates an entry already exists for the record id.
	ErrDuplicateRecordID = errors.Wrap(errors.ErrConflict, "duplicate record id")

	// ErrKeyStoreUnavailable indicates the durable key store could not be reached.
	// It is the only retryable failure.
	ErrKeyStoreUnavailable = errors.Wrap(errors.ErrUnavailable, "key store unavailable")

	// ErrRewrapInProgress indicates a rotation was requested while a rewrap is still running.
	ErrRewrapInProgress = errors.Wrap(errors.ErrConflict, "rewrap already in progress")

	// ErrRewrapActiveVersion indicates a rewrap was requested from the active master key version.
	ErrRewrapActiveVersion = errors.Wrap(errors.ErrInvalidInput, "cannot rewrap from the active master key version")

	// ErrRewrapIncomplete indicates entries were still found under the retiring version after
	// the last verification pass. The retired key is kept.
	ErrRewrapIncomplete = errors.Wrap(errors.ErrConflict, "rewrap incomplete")

	// ErrInvalidRecordID indicates a record id that is not a UUID.
	ErrInvalidRecordID = errors.Wrap(errors.ErrInvalidInput, "invalid record id")

	// ErrInvalidBlobFormat indicates a wrapped key blob does not have four colon separated parts.
	ErrInvalidBlobFormat = errors.Wrap(errors.ErrInvalidInput, "invalid wrapped key blob format")

	// ErrInvalidBlobVersion indicates the blob's master key version is not a positive integer.
	ErrInvalidBlobVersion = errors.Wrap(errors.ErrInvalidInput, "invalid wrapped key blob version")

	// ErrInvalidBlobBase64 indicates the blob's nonce or wrapped DEK is not valid base64.
	ErrInvalidBlobBase64 = errors.Wrap(errors.ErrInvalidInput, "invalid wrapped key blob base64")
)
