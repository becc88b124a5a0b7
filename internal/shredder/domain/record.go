// Package domain defines the crypto-shredding domain models.
//
// Every record is sealed under its own DEK. The DEK exists at rest only wrapped by a master
// key, inside a WrappedKeyEntry keyed by the record id. Removing that entry is the shred:
// the ciphertext stays where it is but can never be decrypted again.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
)

// NewRecordID returns a fresh UUIDv7 record id. Ids are never reused, even after a shred.
func NewRecordID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// ParseRecordID parses the canonical string form of a record id.
func ParseRecordID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrInvalidRecordID
	}
	return id, nil
}

// EncryptedRecord is the externally persisted result of logging an event. It carries no
// key material and is safe to store in append-only logs.
type EncryptedRecord struct {
	RecordID   uuid.UUID
	Ciphertext []byte
	Nonce      []byte
}

// WrappedKeyEntry is the key store's unit of storage: a DEK wrapped under a master key
// version, plus the payload algorithm the DEK seals with.
type WrappedKeyEntry struct {
	RecordID         uuid.UUID
	Algorithm        cryptoDomain.Algorithm
	WrapNonce        []byte
	WrappedDek       []byte
	MasterKeyVersion uint
	CreatedAt        time.Time
}

// Clone returns a deep copy so callers never share byte slices with the store.
func (e *WrappedKeyEntry) Clone() *WrappedKeyEntry {
	c := *e
	c.WrapNonce = slices.Clone(e.WrapNonce)
	c.WrappedDek = slices.Clone(e.WrappedDek)
	return &c
}

// Zero overwrites the wrapped key material held by the entry.
func (e *WrappedKeyEntry) Zero() {
	cryptoDomain.Zero(e.WrapNonce)
	cryptoDomain.Zero(e.WrappedDek)
	e.MasterKeyVersion = 0
}

// Wrapped returns the wrapped DEK in the form the master key manager consumes.
func (e *WrappedKeyEntry) Wrapped() cryptoDomain.WrappedDek {
	return cryptoDomain.WrappedDek{
		Nonce:            e.WrapNonce,
		Ciphertext:       e.WrappedDek,
		MasterKeyVersion: e.MasterKeyVersion,
	}
}

// Blob returns the exportable form of the entry.
func (e *WrappedKeyEntry) Blob() WrappedKeyBlob {
	return WrappedKeyBlob{
		MasterKeyVersion: e.MasterKeyVersion,
		Algorithm:        e.Algorithm,
		WrapNonce:        slices.Clone(e.WrapNonce),
		WrappedDek:       slices.Clone(e.WrappedDek),
	}
}
