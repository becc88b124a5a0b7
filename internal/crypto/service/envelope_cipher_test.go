package service

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
)

func TestEnvelopeCipherService(t *testing.T) {
	ec := NewEnvelopeCipher(NewAEADManager())

	key, err := GenerateKey()
	require.NoError(t, err)
	nonce, err := GenerateNonce()
	require.NoError(t, err)
	aad := []byte("log_0001")

	t.Run("round trip", func(t *testing.T) {
		ciphertext, err := ec.Seal(cryptoDomain.AESGCM, key, nonce, []byte("user@example.com"), aad)
		require.NoError(t, err)
		assert.NotContains(t, string(ciphertext), "user@example.com")

		plaintext, err := ec.Open(cryptoDomain.AESGCM, key, nonce, ciphertext, aad)
		require.NoError(t, err)
		assert.Equal(t, []byte("user@example.com"), plaintext)
	})

	t.Run("empty plaintext", func(t *testing.T) {
		ciphertext, err := ec.Seal(cryptoDomain.ChaCha20, key, nonce, nil, aad)
		require.NoError(t, err)
		assert.Len(t, ciphertext, cryptoDomain.TagSize)

		plaintext, err := ec.Open(cryptoDomain.ChaCha20, key, nonce, ciphertext, aad)
		require.NoError(t, err)
		assert.Empty(t, plaintext)
	})

	t.Run("tampering is detected", func(t *testing.T) {
		ciphertext, err := ec.Seal(cryptoDomain.AESGCM, key, nonce, []byte("payload"), aad)
		require.NoError(t, err)

		for i := range ciphertext {
			tampered := bytes.Clone(ciphertext)
			tampered[i] ^= 0x01
			_, err := ec.Open(cryptoDomain.AESGCM, key, nonce, tampered, aad)
			assert.ErrorIs(t, err, cryptoDomain.ErrAuthFailure)
		}
	})

	t.Run("wrong key or nonce", func(t *testing.T) {
		ciphertext, err := ec.Seal(cryptoDomain.AESGCM, key, nonce, []byte("payload"), aad)
		require.NoError(t, err)

		otherKey, err := GenerateKey()
		require.NoError(t, err)
		_, err = ec.Open(cryptoDomain.AESGCM, otherKey, nonce, ciphertext, aad)
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthFailure)

		otherNonce, err := GenerateNonce()
		require.NoError(t, err)
		_, err = ec.Open(cryptoDomain.AESGCM, key, otherNonce, ciphertext, aad)
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthFailure)
	})

	t.Run("invalid key size", func(t *testing.T) {
		_, err := ec.Seal(cryptoDomain.AESGCM, key[:31], nonce, []byte("payload"), aad)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})
}

func TestGenerateKeyAndNonce(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	k2, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, k1, cryptoDomain.KeySize)
	assert.NotEqual(t, k1, k2)

	n, err := GenerateNonce()
	require.NoError(t, err)
	assert.Len(t, n, cryptoDomain.NonceSize)
}
