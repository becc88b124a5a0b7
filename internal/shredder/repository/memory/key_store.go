// Package memory implements a sharded in-process KeyStore.
//
// Entries are partitioned by an xxhash of the record id into independently locked shards,
// so a shred never waits behind reads of unrelated records. Shredded ids are remembered
// for the life of the process and refused by Put.
package memory

import (
	"context"
	"iter"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
)

// DefaultShards is the shard count used when none is configured.
const DefaultShards = 64

// KeyStore is a volatile KeyStore. Every entry is lost when the process exits.
type KeyStore struct {
	shards []*shard
}

// NewKeyStore creates a KeyStore with n shards. n <= 0 selects DefaultShards.
func NewKeyStore(n int) *KeyStore {
	if n <= 0 {
		n = DefaultShards
	}
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = newShard()
	}
	return &KeyStore{shards: shards}
}

func (k *KeyStore) shardFor(id uuid.UUID) *shard {
	return k.shards[xxhash.Sum64(id[:])%uint64(len(k.shards))]
}

// Put stores a copy of entry. Returns ErrErased for an id that was removed before.
func (k *KeyStore) Put(ctx context.Context, entry *shredderDomain.WrappedKeyEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.shardFor(entry.RecordID).insert(entry.Clone())
}

// Get returns a copy of the entry for id.
func (k *KeyStore) Get(ctx context.Context, id uuid.UUID) (*shredderDomain.WrappedKeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, _ := k.shardFor(id).lookup(id)
	if entry == nil {
		return nil, shredderDomain.ErrEntryNotFound
	}
	return entry, nil
}

// Version returns the master key version of the entry for id.
func (k *KeyStore) Version(ctx context.Context, id uuid.UUID) (uint, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	version, ok := k.shardFor(id).versionOf(id)
	if !ok {
		return 0, shredderDomain.ErrEntryNotFound
	}
	return version, nil
}

// Remove deletes and zeroizes the entry for id and marks id shredded. It ignores ctx so a
// started shred always completes.
func (k *KeyStore) Remove(_ context.Context, id uuid.UUID) (bool, error) {
	return k.shardFor(id).remove(id, true), nil
}

// Replace swaps in a copy of entry if the stored version is still expectedVersion.
func (k *KeyStore) Replace(
	ctx context.Context,
	entry *shredderDomain.WrappedKeyEntry,
	expectedVersion uint,
) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return k.shardFor(entry.RecordID).replace(entry.Clone(), expectedVersion), nil
}

// ListByMasterKeyVersion yields ids under version one shard at a time. Each shard is
// snapshotted under its read lock and yielded after the lock is released.
func (k *KeyStore) ListByMasterKeyVersion(
	ctx context.Context,
	version uint,
) iter.Seq2[uuid.UUID, error] {
	return func(yield func(uuid.UUID, error) bool) {
		for _, s := range k.shards {
			if err := ctx.Err(); err != nil {
				yield(uuid.Nil, err)
				return
			}
			for _, id := range s.idsByVersion(version) {
				if !yield(id, nil) {
					return
				}
			}
		}
	}
}

// Len returns the number of stored entries.
func (k *KeyStore) Len() int {
	n := 0
	for _, s := range k.shards {
		n += s.len()
	}
	return n
}

// Generation returns the mutation counter of the shard owning id. It changes whenever an
// entry in that shard is removed or replaced.
func (k *KeyStore) Generation(id uuid.UUID) uint64 {
	return k.shardFor(id).gen()
}

// Lookup returns a copy of the entry for id, or nil when absent.
func (k *KeyStore) Lookup(id uuid.UUID) *shredderDomain.WrappedKeyEntry {
	entry, _ := k.shardFor(id).lookup(id)
	return entry
}

// Evict deletes and zeroizes the entry for id without marking it shredded.
func (k *KeyStore) Evict(id uuid.UUID) bool {
	return k.shardFor(id).remove(id, false)
}

// StoreIfGeneration caches a copy of entry unless the owning shard changed since
// generation was read. It reports whether the entry was stored.
func (k *KeyStore) StoreIfGeneration(entry *shredderDomain.WrappedKeyEntry, generation uint64) bool {
	return k.shardFor(entry.RecordID).storeIfGeneration(entry.Clone(), generation)
}
