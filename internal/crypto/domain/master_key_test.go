package domain

import (
	"bytes"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func newTestChain(t *testing.T) *MasterKeyChain {
	t.Helper()
	mkc := NewMasterKeyChain()
	require.NoError(t, mkc.Add(1, testKey(1)))
	require.NoError(t, mkc.Activate(1))
	return mkc
}

func TestMasterKeyChain_Add(t *testing.T) {
	t.Run("stores a copy", func(t *testing.T) {
		mkc := NewMasterKeyChain()
		key := testKey(7)
		require.NoError(t, mkc.Add(3, key))
		Zero(key)

		mk, ok := mkc.Get(3)
		require.True(t, ok)
		assert.Equal(t, testKey(7), mk.Key)
		assert.Equal(t, MasterKeyRetired, mk.Status)
	})

	t.Run("rejects invalid size", func(t *testing.T) {
		mkc := NewMasterKeyChain()
		assert.ErrorIs(t, mkc.Add(1, []byte("short")), ErrInvalidKeySize)
	})

	t.Run("rejects duplicate version", func(t *testing.T) {
		mkc := newTestChain(t)
		assert.ErrorIs(t, mkc.Add(1, testKey(2)), ErrMasterKeyVersionExists)
	})
}

func TestMasterKeyChain_Rotate(t *testing.T) {
	mkc := newTestChain(t)

	version, err := mkc.Rotate(testKey(2))
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.Equal(t, uint(2), mkc.ActiveVersion())
	assert.Equal(t, []uint{1, 2}, mkc.Versions())
	assert.Equal(t, []uint{1}, mkc.RetiredVersions())

	old, ok := mkc.Get(1)
	require.True(t, ok)
	assert.Equal(t, MasterKeyRetired, old.Status)

	current, ok := mkc.Get(2)
	require.True(t, ok)
	assert.Equal(t, MasterKeyActive, current.Status)

	_, err = mkc.Rotate([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestMasterKeyChain_Forget(t *testing.T) {
	t.Run("zeroizes retired key", func(t *testing.T) {
		mkc := newTestChain(t)
		_, err := mkc.Rotate(testKey(2))
		require.NoError(t, err)

		old, _ := mkc.Get(1)
		require.NoError(t, mkc.Forget(1))

		assert.Equal(t, make([]byte, KeySize), old.Key)
		_, ok := mkc.Get(1)
		assert.False(t, ok)
		assert.Empty(t, mkc.RetiredVersions())
	})

	t.Run("refuses active key", func(t *testing.T) {
		mkc := newTestChain(t)
		assert.ErrorIs(t, mkc.Forget(1), ErrActiveMasterKeyForget)
	})

	t.Run("unknown version is a no-op", func(t *testing.T) {
		mkc := newTestChain(t)
		assert.NoError(t, mkc.Forget(42))
	})
}

func TestMasterKeyChain_WithKey(t *testing.T) {
	mkc := newTestChain(t)

	err := mkc.WithKey(1, func(mk *MasterKey) error {
		assert.Equal(t, uint(1), mk.Version)
		return nil
	})
	assert.NoError(t, err)

	err = mkc.WithKey(9, func(mk *MasterKey) error { return nil })
	assert.ErrorIs(t, err, ErrMasterKeyVersionUnknown)
}

func TestMasterKeyChain_WithActiveKey(t *testing.T) {
	mkc := newTestChain(t)

	release, err := mkc.WithActiveKey(func(mk *MasterKey) error {
		assert.Equal(t, MasterKeyActive, mk.Status)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), mkc.InFlight(1))

	release()
	release()
	assert.Equal(t, int64(0), mkc.InFlight(1))

	_, err = mkc.WithActiveKey(func(mk *MasterKey) error { return ErrAuthFailure })
	assert.ErrorIs(t, err, ErrAuthFailure)
	assert.Equal(t, int64(0), mkc.InFlight(1))
}

func TestMasterKeyChain_ConcurrentRotateAndWrap(t *testing.T) {
	mkc := newTestChain(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := mkc.WithActiveKey(func(mk *MasterKey) error { return nil })
			if assert.NoError(t, err) {
				release()
			}
		}()
	}
	_, err := mkc.Rotate(testKey(2))
	require.NoError(t, err)
	wg.Wait()

	assert.Equal(t, int64(0), mkc.InFlight(1))
	assert.Equal(t, int64(0), mkc.InFlight(2))
}

func TestMasterKeyChain_Close(t *testing.T) {
	mkc := newTestChain(t)
	mk, _ := mkc.Get(1)

	mkc.Close()

	assert.Equal(t, make([]byte, KeySize), mk.Key)
	assert.Empty(t, mkc.Versions())
	assert.Equal(t, uint(0), mkc.ActiveVersion())
}

func TestParseMasterKeyChain(t *testing.T) {
	key1 := base64.StdEncoding.EncodeToString(testKey(1))
	key2 := base64.StdEncoding.EncodeToString(testKey(2))

	t.Run("valid keys", func(t *testing.T) {
		mkc, err := ParseMasterKeyChain("1:"+key1+", 2:"+key2, 2)
		require.NoError(t, err)
		defer mkc.Close()

		assert.Equal(t, uint(2), mkc.ActiveVersion())
		assert.Equal(t, []uint{1}, mkc.RetiredVersions())
		mk, ok := mkc.Get(1)
		require.True(t, ok)
		assert.Equal(t, testKey(1), mk.Key)
	})

	tests := []struct {
		name    string
		raw     string
		active  uint
		wantErr error
	}{
		{name: "empty keys", raw: "", active: 1, wantErr: ErrMasterKeysNotSet},
		{name: "missing active", raw: "1:" + key1, active: 0, wantErr: ErrActiveMasterKeyVersionNotSet},
		{name: "missing separator", raw: key1, active: 1, wantErr: ErrInvalidMasterKeysFormat},
		{name: "non numeric version", raw: "a:" + key1, active: 1, wantErr: ErrInvalidMasterKeysFormat},
		{name: "zero version", raw: "0:" + key1, active: 1, wantErr: ErrInvalidMasterKeysFormat},
		{name: "bad base64", raw: "1:not-base64!", active: 1, wantErr: ErrInvalidMasterKeyBase64},
		{
			name:    "wrong size",
			raw:     "1:" + base64.StdEncoding.EncodeToString([]byte("short")),
			active:  1,
			wantErr: ErrInvalidKeySize,
		},
		{name: "duplicate version", raw: "1:" + key1 + ",1:" + key2, active: 1, wantErr: ErrMasterKeyVersionExists},
		{name: "active not loaded", raw: "1:" + key1, active: 3, wantErr: ErrActiveMasterKeyNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mkc, err := ParseMasterKeyChain(tt.raw, tt.active)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, mkc)
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("aes-gcm")
	require.NoError(t, err)
	assert.Equal(t, AESGCM, alg)

	alg, err = ParseAlgorithm("chacha20-poly1305")
	require.NoError(t, err)
	assert.Equal(t, ChaCha20, alg)

	_, err = ParseAlgorithm("des")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestParseMasterKeyChainWith(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("sealed"))

	t.Run("applies unwrap", func(t *testing.T) {
		mkc, err := ParseMasterKeyChainWith("4:"+encoded, 4, func(ciphertext []byte) ([]byte, error) {
			assert.Equal(t, []byte("sealed"), ciphertext)
			return testKey(4), nil
		})
		require.NoError(t, err)
		defer mkc.Close()

		mk, ok := mkc.Get(4)
		require.True(t, ok)
		assert.Equal(t, testKey(4), mk.Key)
	})

	t.Run("unwrap error", func(t *testing.T) {
		mkc, err := ParseMasterKeyChainWith("4:"+encoded, 4, func([]byte) ([]byte, error) {
			return nil, ErrAuthFailure
		})
		assert.ErrorIs(t, err, ErrAuthFailure)
		assert.Nil(t, mkc)
	})
}
