// Package usecase implements the crypto-shred service.
//
// The service encrypts every logged event under a fresh per-record DEK, keeps only the
// wrapped DEK in a KeyStore, and erases records by removing the wrapped DEK. It also drives
// master key rotation by rewrapping every stored DEK under the new active version before
// the retired version is forgotten.
package usecase

import (
	"context"
	"iter"

	"github.com/google/uuid"

	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
)

// KeyStore defines the interface for wrapped DEK persistence.
//
// Implementation requirements:
//   - Every operation is atomic with respect to every other operation on the same record id
//   - Operations on different record ids must not serialize on a single global lock
//   - Get returns a copy; callers never share mutable state with the store
//   - Remove is idempotent and any in-memory copy of the removed entry is zeroized
//   - Remove marks the id shredded, whether or not it was stored; Put of a shredded id
//     returns ErrErased
//   - Cancelling ctx never leaves a partially applied write
//
// Available implementations:
//   - memory.KeyStore: sharded in-process map, volatile
//   - postgresql.KeyStore, mysql.KeyStore: durable SQL tables
//   - cached.KeyStore: memory shards in front of a durable store
type KeyStore interface {
	// Put inserts entry. Returns ErrDuplicateRecordID if the record id is already present
	// and ErrErased if it was shredded.
	Put(ctx context.Context, entry *shredderDomain.WrappedKeyEntry) error

	// Get returns a copy of the entry for id, or ErrEntryNotFound.
	Get(ctx context.Context, id uuid.UUID) (*shredderDomain.WrappedKeyEntry, error)

	// Remove deletes the entry for id, marks id shredded and reports whether it existed.
	Remove(ctx context.Context, id uuid.UUID) (bool, error)

	// Replace swaps in entry only if the stored entry for the same record id still carries
	// expectedVersion. It reports false when the entry is gone or already changed, which
	// lets a concurrent shred win over a rewrap.
	Replace(ctx context.Context, entry *shredderDomain.WrappedKeyEntry, expectedVersion uint) (bool, error)

	// ListByMasterKeyVersion yields the ids of entries wrapped under version. Entries
	// removed or rewrapped during iteration may or may not be yielded; every entry still
	// under version when iteration starts and untouched until it ends is yielded once.
	// Iteration stops at the first error, which is yielded with a nil id.
	ListByMasterKeyVersion(ctx context.Context, version uint) iter.Seq2[uuid.UUID, error]
}

// ShredUseCase is the crypto-shred service façade.
type ShredUseCase interface {
	// LogEvent encrypts payload under a fresh DEK, stores the wrapped DEK and returns the
	// record. On error nothing is stored.
	LogEvent(ctx context.Context, payload []byte) (*shredderDomain.EncryptedRecord, error)

	// ReadEvent decrypts record. Returns ErrErased when its wrapped DEK is gone and
	// ErrAuthFailure when the record or the wrapped DEK was tampered with.
	ReadEvent(ctx context.Context, record *shredderDomain.EncryptedRecord) ([]byte, error)

	// Shred permanently erases the record id. It is idempotent and not cancellable once
	// started; absence of the id is not an error.
	Shred(ctx context.Context, id uuid.UUID) error

	// ExportWrappedKey returns the wrapped DEK for external storage, or ErrErased.
	ExportWrappedKey(ctx context.Context, id uuid.UUID) (*shredderDomain.WrappedKeyBlob, error)

	// RestoreWrappedKey re-inserts an exported blob. Returns ErrErased when the record id
	// was shredded, ErrDuplicateRecordID when it is already present and
	// ErrMasterKeyVersionUnknown when the blob references a version the chain no longer holds.
	RestoreWrappedKey(ctx context.Context, id uuid.UUID, blob shredderDomain.WrappedKeyBlob) error

	// RotateMasterKey installs newKey as the next active master key version and starts a
	// background rewrap of every entry under any retired version.
	RotateMasterKey(ctx context.Context, newKey []byte) (*RewrapJob, error)

	// RewrapAll rewraps every entry under fromVersion to the active version and forgets
	// fromVersion once a verification pass finds nothing left under it.
	RewrapAll(ctx context.Context, fromVersion uint) (RewrapStats, error)
}
