package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
)

func newTestMasterKeyManager(t *testing.T) (*MasterKeyManagerService, *cryptoDomain.MasterKeyChain) {
	t.Helper()
	chain := cryptoDomain.NewMasterKeyChain()
	require.NoError(t, chain.Add(1, bytes.Repeat([]byte{0x11}, cryptoDomain.KeySize)))
	require.NoError(t, chain.Activate(1))
	t.Cleanup(chain.Close)
	return NewMasterKeyManager(chain, NewEnvelopeCipher(NewAEADManager())), chain
}

func TestMasterKeyManagerService_WrapUnwrap(t *testing.T) {
	mkm, _ := newTestMasterKeyManager(t)
	dek, err := GenerateKey()
	require.NoError(t, err)
	aad := []byte("record-1")

	wrapped, release, err := mkm.Wrap(dek, aad)
	require.NoError(t, err)
	defer release()

	assert.Equal(t, uint(1), wrapped.MasterKeyVersion)
	assert.Len(t, wrapped.Nonce, cryptoDomain.NonceSize)
	assert.Len(t, wrapped.Ciphertext, cryptoDomain.KeySize+cryptoDomain.TagSize)

	got, err := mkm.Unwrap(wrapped, aad)
	require.NoError(t, err)
	assert.Equal(t, dek, got)

	t.Run("different aad", func(t *testing.T) {
		_, err := mkm.Unwrap(wrapped, []byte("record-2"))
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthFailure)
	})

	t.Run("unknown version", func(t *testing.T) {
		unknown := wrapped
		unknown.MasterKeyVersion = 7
		_, err := mkm.Unwrap(unknown, aad)
		assert.ErrorIs(t, err, cryptoDomain.ErrMasterKeyVersionUnknown)
	})
}

func TestMasterKeyManagerService_Rotate(t *testing.T) {
	mkm, _ := newTestMasterKeyManager(t)
	dek, err := GenerateKey()
	require.NoError(t, err)

	old, release, err := mkm.Wrap(dek, nil)
	require.NoError(t, err)
	release()

	newKey, err := GenerateKey()
	require.NoError(t, err)
	version, err := mkm.Rotate(newKey)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.Equal(t, uint(2), mkm.ActiveVersion())
	assert.Equal(t, []uint{1}, mkm.RetiredVersions())

	// Retired keys still unwrap until forgotten.
	got, err := mkm.Unwrap(old, nil)
	require.NoError(t, err)
	assert.Equal(t, dek, got)

	fresh, release, err := mkm.Wrap(dek, nil)
	require.NoError(t, err)
	release()
	assert.Equal(t, uint(2), fresh.MasterKeyVersion)

	require.NoError(t, mkm.Forget(1))
	_, err = mkm.Unwrap(old, nil)
	assert.ErrorIs(t, err, cryptoDomain.ErrMasterKeyVersionUnknown)
	assert.ErrorIs(t, mkm.Forget(2), cryptoDomain.ErrActiveMasterKeyForget)
}

func TestMasterKeyManagerService_WaitIdle(t *testing.T) {
	mkm, _ := newTestMasterKeyManager(t)

	t.Run("idle returns immediately", func(t *testing.T) {
		assert.NoError(t, mkm.WaitIdle(context.Background(), 1))
	})

	t.Run("waits for release", func(t *testing.T) {
		_, release, err := mkm.Wrap([]byte("dek"), nil)
		require.NoError(t, err)

		time.AfterFunc(30*time.Millisecond, release)
		assert.NoError(t, mkm.WaitIdle(context.Background(), 1))
	})

	t.Run("context cancelled", func(t *testing.T) {
		_, release, err := mkm.Wrap([]byte("dek"), nil)
		require.NoError(t, err)
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, mkm.WaitIdle(ctx, 1), context.DeadlineExceeded)
	})
}
