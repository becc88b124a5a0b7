package service

import (
	"context"
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
)

// MasterKeySource describes where master keys come from at startup.
//
// Exactly one source is used, checked in this order:
//   - Passphrase: a single key derived with Argon2id and installed as PassphraseVersion
//   - Keys with KMSKeyURI: MASTER_KEYS values are KMS ciphertexts
//   - Keys: MASTER_KEYS values are the raw base64 keys
type MasterKeySource struct {
	Keys              string
	ActiveVersion     uint
	Passphrase        string
	Salt              string
	PassphraseVersion uint
	KMSProvider       string
	KMSKeyURI         string
}

// LoadMasterKeyChain builds the master key chain from source.
func LoadMasterKeyChain(
	ctx context.Context,
	source MasterKeySource,
	kmsService KMSService,
	logger *slog.Logger,
) (*cryptoDomain.MasterKeyChain, error) {
	if source.Passphrase != "" {
		return loadFromPassphrase(source, logger)
	}

	if source.KMSKeyURI == "" {
		logger.Warn("master keys loaded in plaintext from environment, configure KMS_KEY_URI in production")
		return cryptoDomain.ParseMasterKeyChain(source.Keys, source.ActiveVersion)
	}

	keeper, err := kmsService.OpenKeeper(ctx, source.KMSKeyURI)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Error("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	chain, err := cryptoDomain.ParseMasterKeyChainWith(
		source.Keys,
		source.ActiveVersion,
		func(ciphertext []byte) ([]byte, error) {
			return keeper.Decrypt(ctx, ciphertext)
		},
	)
	if err != nil {
		return nil, err
	}

	logger.Info("master keys decrypted with KMS",
		slog.String("kms_provider", source.KMSProvider),
		slog.Uint64("active_version", uint64(chain.ActiveVersion())),
	)
	return chain, nil
}

func loadFromPassphrase(
	source MasterKeySource,
	logger *slog.Logger,
) (*cryptoDomain.MasterKeyChain, error) {
	version := source.PassphraseVersion
	if version == 0 {
		version = 1
	}

	key, err := DeriveMasterKey([]byte(source.Passphrase), []byte(source.Salt))
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(key)

	chain := cryptoDomain.NewMasterKeyChain()
	if err := chain.Add(version, key); err != nil {
		return nil, fmt.Errorf("failed to add derived master key: %w", err)
	}
	if err := chain.Activate(version); err != nil {
		chain.Close()
		return nil, err
	}

	logger.Info("master key derived from passphrase", slog.Uint64("active_version", uint64(version)))
	return chain, nil
}
