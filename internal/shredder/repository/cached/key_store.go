// Package cached composes a durable KeyStore with an in-memory shard cache.
//
// The durable store is the source of truth and may be written by other processes. Every
// read asks it for the entry's current master key version; the cached copy is served only
// while it carries that version, so a shred or rewrap done elsewhere is seen by the next
// read. Misses read through and populate the cache only when the owning shard did not
// change in the meantime, so a shred racing with a read-through can never resurrect a
// cache entry.
package cached

import (
	"context"
	"errors"
	"iter"

	"github.com/google/uuid"

	"github.com/allisson/cryptoshred/internal/shredder/repository/memory"
	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
)

// Durable is the subset of the KeyStore contract the cache needs from its backing store.
type Durable interface {
	Put(ctx context.Context, entry *shredderDomain.WrappedKeyEntry) error
	Get(ctx context.Context, id uuid.UUID) (*shredderDomain.WrappedKeyEntry, error)
	// Version returns the master key version of the live entry for id, or ErrEntryNotFound.
	Version(ctx context.Context, id uuid.UUID) (uint, error)
	Remove(ctx context.Context, id uuid.UUID) (bool, error)
	Replace(ctx context.Context, entry *shredderDomain.WrappedKeyEntry, expectedVersion uint) (bool, error)
	ListByMasterKeyVersion(ctx context.Context, version uint) iter.Seq2[uuid.UUID, error]
}

// KeyStore is a read-through, write-through cache over a Durable store.
type KeyStore struct {
	durable Durable
	cache   *memory.KeyStore
}

// NewKeyStore wraps durable with a cache of the given shard count.
func NewKeyStore(durable Durable, shards int) *KeyStore {
	return &KeyStore{durable: durable, cache: memory.NewKeyStore(shards)}
}

// Put writes to the durable store first and caches the entry once it is persisted.
func (k *KeyStore) Put(ctx context.Context, entry *shredderDomain.WrappedKeyEntry) error {
	gen := k.cache.Generation(entry.RecordID)
	if err := k.durable.Put(ctx, entry); err != nil {
		return err
	}
	k.cache.StoreIfGeneration(entry, gen)
	return nil
}

// Get checks the entry is still live in the durable store, then serves the cached copy
// when it matches the durable version and reads through otherwise.
func (k *KeyStore) Get(ctx context.Context, id uuid.UUID) (*shredderDomain.WrappedKeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The generation must be read before the durable lookups: a removal landing in between
	// bumps it and the stale result is not cached.
	gen := k.cache.Generation(id)
	version, err := k.durable.Version(ctx, id)
	if err != nil {
		if errors.Is(err, shredderDomain.ErrEntryNotFound) {
			k.cache.Evict(id)
		}
		return nil, err
	}

	if entry := k.cache.Lookup(id); entry != nil {
		if entry.MasterKeyVersion == version {
			return entry, nil
		}
		entry.Zero()
		k.cache.Evict(id)
		gen = k.cache.Generation(id)
	}

	entry, err := k.durable.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shredderDomain.ErrEntryNotFound) {
			k.cache.Evict(id)
		}
		return nil, err
	}
	k.cache.StoreIfGeneration(entry, gen)
	return entry, nil
}

// Remove deletes from the durable store, then evicts and zeroizes the cached copy. The
// cache is evicted even when the durable delete fails so no stale copy outlives the call.
func (k *KeyStore) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	existed, err := k.durable.Remove(ctx, id)
	cached := k.cache.Evict(id)
	if err != nil {
		return false, err
	}
	return existed || cached, nil
}

// Replace updates the durable store and evicts the cached copy whatever the outcome;
// the next Get reads the current entry through.
func (k *KeyStore) Replace(
	ctx context.Context,
	entry *shredderDomain.WrappedKeyEntry,
	expectedVersion uint,
) (bool, error) {
	ok, err := k.durable.Replace(ctx, entry, expectedVersion)
	k.cache.Evict(entry.RecordID)
	return ok, err
}

// ListByMasterKeyVersion delegates to the durable store.
func (k *KeyStore) ListByMasterKeyVersion(
	ctx context.Context,
	version uint,
) iter.Seq2[uuid.UUID, error] {
	return k.durable.ListByMasterKeyVersion(ctx, version)
}
