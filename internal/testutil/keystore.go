package testutil

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
	"github.com/allisson/cryptoshred/internal/shredder/usecase"
)

// NewWrappedKeyEntry returns an entry with placeholder key material under version.
func NewWrappedKeyEntry(version uint) *shredderDomain.WrappedKeyEntry {
	return &shredderDomain.WrappedKeyEntry{
		RecordID:         shredderDomain.NewRecordID(),
		Algorithm:        cryptoDomain.AESGCM,
		WrapNonce:        bytesOf(0x0a, cryptoDomain.NonceSize),
		WrappedDek:       bytesOf(0x0b, cryptoDomain.KeySize+cryptoDomain.TagSize),
		MasterKeyVersion: version,
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// RunKeyStoreContract exercises the behaviour every KeyStore implementation shares.
// newStore must return an empty store.
func RunKeyStoreContract(t *testing.T, newStore func(t *testing.T) usecase.KeyStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("put get", func(t *testing.T) {
		store := newStore(t)
		entry := NewWrappedKeyEntry(1)
		require.NoError(t, store.Put(ctx, entry))

		got, err := store.Get(ctx, entry.RecordID)
		require.NoError(t, err)
		assert.Equal(t, entry.RecordID, got.RecordID)
		assert.Equal(t, entry.Algorithm, got.Algorithm)
		assert.Equal(t, entry.WrapNonce, got.WrapNonce)
		assert.Equal(t, entry.WrappedDek, got.WrappedDek)
		assert.Equal(t, entry.MasterKeyVersion, got.MasterKeyVersion)
		assert.WithinDuration(t, entry.CreatedAt, got.CreatedAt, time.Second)

		got.WrappedDek[0] ^= 0xff
		again, err := store.Get(ctx, entry.RecordID)
		require.NoError(t, err)
		assert.Equal(t, entry.WrappedDek, again.WrappedDek, "Get must return a copy")
	})

	t.Run("duplicate", func(t *testing.T) {
		store := newStore(t)
		entry := NewWrappedKeyEntry(1)
		require.NoError(t, store.Put(ctx, entry))
		assert.ErrorIs(t, store.Put(ctx, entry.Clone()), shredderDomain.ErrDuplicateRecordID)
	})

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, shredderDomain.ErrEntryNotFound)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		store := newStore(t)
		entry := NewWrappedKeyEntry(1)
		require.NoError(t, store.Put(ctx, entry))

		existed, err := store.Remove(ctx, entry.RecordID)
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = store.Remove(ctx, entry.RecordID)
		require.NoError(t, err)
		assert.False(t, existed)

		_, err = store.Get(ctx, entry.RecordID)
		assert.ErrorIs(t, err, shredderDomain.ErrEntryNotFound)
	})

	t.Run("shredded id is never reused", func(t *testing.T) {
		store := newStore(t)
		entry := NewWrappedKeyEntry(1)
		require.NoError(t, store.Put(ctx, entry))
		_, err := store.Remove(ctx, entry.RecordID)
		require.NoError(t, err)

		assert.ErrorIs(t, store.Put(ctx, entry.Clone()), shredderDomain.ErrErased)
		_, err = store.Get(ctx, entry.RecordID)
		assert.ErrorIs(t, err, shredderDomain.ErrEntryNotFound)

		unknown := NewWrappedKeyEntry(1)
		existed, err := store.Remove(ctx, unknown.RecordID)
		require.NoError(t, err)
		assert.False(t, existed)
		assert.ErrorIs(t, store.Put(ctx, unknown), shredderDomain.ErrErased)

		for id, err := range store.ListByMasterKeyVersion(ctx, 1) {
			require.NoError(t, err)
			t.Fatalf("shredded id %s listed", id)
		}
	})

	if _, ok := newStore(t).(versioner); ok {
		t.Run("version of live entries", func(t *testing.T) {
			store := newStore(t)
			versions := store.(versioner)
			entry := NewWrappedKeyEntry(4)
			require.NoError(t, store.Put(ctx, entry))

			version, err := versions.Version(ctx, entry.RecordID)
			require.NoError(t, err)
			assert.Equal(t, uint(4), version)

			_, err = store.Remove(ctx, entry.RecordID)
			require.NoError(t, err)
			_, err = versions.Version(ctx, entry.RecordID)
			assert.ErrorIs(t, err, shredderDomain.ErrEntryNotFound)
		})
	}

	t.Run("replace compares version", func(t *testing.T) {
		store := newStore(t)
		entry := NewWrappedKeyEntry(1)
		require.NoError(t, store.Put(ctx, entry))

		next := entry.Clone()
		next.MasterKeyVersion = 2
		next.WrappedDek = bytesOf(0x0c, len(entry.WrappedDek))

		ok, err := store.Replace(ctx, next, 3)
		require.NoError(t, err)
		assert.False(t, ok, "stale expected version must not replace")

		ok, err = store.Replace(ctx, next, 1)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := store.Get(ctx, entry.RecordID)
		require.NoError(t, err)
		assert.Equal(t, uint(2), got.MasterKeyVersion)
		assert.Equal(t, next.WrappedDek, got.WrappedDek)

		_, err = store.Remove(ctx, entry.RecordID)
		require.NoError(t, err)
		ok, err = store.Replace(ctx, next, 2)
		require.NoError(t, err)
		assert.False(t, ok, "replace must not resurrect a removed entry")
	})

	t.Run("list by master key version", func(t *testing.T) {
		store := newStore(t)
		var want []uuid.UUID
		for i := range 7 {
			version := uint(1)
			if i%3 == 0 {
				version = 2
			}
			entry := NewWrappedKeyEntry(version)
			require.NoError(t, store.Put(ctx, entry))
			if version == 1 {
				want = append(want, entry.RecordID)
			}
		}

		var got []uuid.UUID
		for id, err := range store.ListByMasterKeyVersion(ctx, 1) {
			require.NoError(t, err)
			got = append(got, id)
		}
		slices.SortFunc(want, compareUUID)
		slices.SortFunc(got, compareUUID)
		assert.Equal(t, want, got)

		for range store.ListByMasterKeyVersion(ctx, 9) {
			t.Fatal("no entry is wrapped under version 9")
		}
	})
}

type versioner interface {
	Version(ctx context.Context, id uuid.UUID) (uint, error)
}

func compareUUID(a, b uuid.UUID) int {
	return slices.Compare(a[:], b[:])
}
