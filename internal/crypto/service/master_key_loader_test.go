package service

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadMasterKeyChain(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()

	t.Run("plaintext keys", func(t *testing.T) {
		key, err := GenerateKey()
		require.NoError(t, err)

		chain, err := LoadMasterKeyChain(ctx, MasterKeySource{
			Keys:          "1:" + base64.StdEncoding.EncodeToString(key),
			ActiveVersion: 1,
		}, kmsService, discardLogger())
		require.NoError(t, err)
		defer chain.Close()

		mk, ok := chain.Get(1)
		require.True(t, ok)
		assert.Equal(t, key, mk.Key)
	})

	t.Run("kms encrypted keys", func(t *testing.T) {
		keyURI := generateLocalSecretsURI(t)
		keeper, err := kmsService.OpenKeeper(ctx, keyURI)
		require.NoError(t, err)
		defer func() { _ = keeper.Close() }()

		key, err := GenerateKey()
		require.NoError(t, err)
		ciphertext, err := keeper.Encrypt(ctx, key)
		require.NoError(t, err)

		chain, err := LoadMasterKeyChain(ctx, MasterKeySource{
			Keys:          "3:" + base64.StdEncoding.EncodeToString(ciphertext),
			ActiveVersion: 3,
			KMSProvider:   "localsecrets",
			KMSKeyURI:     keyURI,
		}, kmsService, discardLogger())
		require.NoError(t, err)
		defer chain.Close()

		assert.Equal(t, uint(3), chain.ActiveVersion())
		mk, ok := chain.Get(3)
		require.True(t, ok)
		assert.Equal(t, key, mk.Key)
	})

	t.Run("kms with wrong key", func(t *testing.T) {
		_, err := LoadMasterKeyChain(ctx, MasterKeySource{
			Keys:          "1:" + base64.StdEncoding.EncodeToString([]byte("not a kms ciphertext")),
			ActiveVersion: 1,
			KMSKeyURI:     generateLocalSecretsURI(t),
		}, kmsService, discardLogger())
		assert.Error(t, err)
	})

	t.Run("passphrase", func(t *testing.T) {
		chain, err := LoadMasterKeyChain(ctx, MasterKeySource{
			Passphrase:        "correct horse battery staple",
			Salt:              "0123456789abcdef",
			PassphraseVersion: 2,
		}, kmsService, discardLogger())
		require.NoError(t, err)
		defer chain.Close()

		assert.Equal(t, uint(2), chain.ActiveVersion())
		expected, err := DeriveMasterKey([]byte("correct horse battery staple"), []byte("0123456789abcdef"))
		require.NoError(t, err)
		mk, _ := chain.Get(2)
		assert.Equal(t, expected, mk.Key)
	})

	t.Run("passphrase with short salt", func(t *testing.T) {
		_, err := LoadMasterKeyChain(ctx, MasterKeySource{
			Passphrase: "secret",
			Salt:       "short",
		}, kmsService, discardLogger())
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidPassphraseSalt)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := LoadMasterKeyChain(ctx, MasterKeySource{}, kmsService, discardLogger())
		assert.ErrorIs(t, err, cryptoDomain.ErrMasterKeysNotSet)
	})
}
