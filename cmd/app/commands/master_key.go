package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
	cryptoService "github.com/allisson/cryptoshred/internal/crypto/service"
)

// RunCreateMasterKey generates a 32-byte master key and prints it as a MASTER_KEYS entry
// under version.
//
// With a KMS key URI the key is encrypted by the KMS before output and the printed value
// is the ciphertext. Without one the raw key is printed, which is only suitable for local
// development. Key material is zeroed once encoded.
func RunCreateMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	version uint,
	kmsProvider, kmsKeyURI string,
) error {
	if version == 0 {
		return fmt.Errorf("version must be greater than 0")
	}

	entry, err := newMasterKeyEntry(ctx, kmsService, logger, version, kmsKeyURI)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(writer, "# Master Key Configuration")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	printKMSConfig(writer, kmsProvider, kmsKeyURI)
	_, _ = fmt.Fprintf(writer, "MASTER_KEYS=\"%s\"\n", entry)
	_, _ = fmt.Fprintf(writer, "ACTIVE_MASTER_KEY_VERSION=\"%d\"\n", version)

	return nil
}

// newMasterKeyEntry generates a key and renders it as "version:base64", encrypting it
// with the KMS keeper at kmsKeyURI when one is given.
func newMasterKeyEntry(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	version uint,
	kmsKeyURI string,
) (string, error) {
	masterKey, err := cryptoService.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate master key: %w", err)
	}
	defer cryptoDomain.Zero(masterKey)

	if kmsKeyURI == "" {
		logger.Warn("master key printed in plaintext, configure KMS_KEY_URI in production")
		return fmt.Sprintf("%d:%s", version, base64.StdEncoding.EncodeToString(masterKey)), nil
	}

	keeper, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return "", fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Error("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	ciphertext, err := keeper.Encrypt(ctx, masterKey)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt master key with KMS: %w", err)
	}

	return fmt.Sprintf("%d:%s", version, base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func printKMSConfig(writer io.Writer, kmsProvider, kmsKeyURI string) {
	if kmsKeyURI == "" {
		return
	}
	_, _ = fmt.Fprintf(writer, "KMS_PROVIDER=\"%s\"\n", kmsProvider)
	_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
}

// masterKeyVersions returns the versions listed in MASTER_KEYS in ascending order without
// decoding the keys.
func masterKeyVersions(masterKeys string) ([]uint, error) {
	var versions []uint
	for entry := range strings.SplitSeq(masterKeys, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		rawVersion, _, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("invalid MASTER_KEYS entry %q: expected version:key", entry)
		}
		version, err := strconv.ParseUint(rawVersion, 10, 64)
		if err != nil || version == 0 {
			return nil, fmt.Errorf("invalid master key version %q", rawVersion)
		}
		versions = append(versions, uint(version))
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("MASTER_KEYS holds no entries")
	}
	slices.Sort(versions)
	return slices.Compact(versions), nil
}
