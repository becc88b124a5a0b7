package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	cryptoService "github.com/allisson/cryptoshred/internal/crypto/service"
)

// RunRotateMasterKey generates the next master key version and prints MASTER_KEYS with the
// new entry appended and made active. The previous versions stay listed so existing
// wrapped DEKs remain readable until rewrap-keys moves them.
func RunRotateMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	kmsProvider, kmsKeyURI, existingMasterKeys string,
) error {
	if existingMasterKeys == "" {
		return fmt.Errorf("MASTER_KEYS is not set - cannot rotate without existing keys")
	}

	retired, err := masterKeyVersions(existingMasterKeys)
	if err != nil {
		return err
	}
	next := retired[len(retired)-1] + 1

	entry, err := newMasterKeyEntry(ctx, kmsService, logger, next, kmsKeyURI)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(writer, "# Master Key Rotation")
	_, _ = fmt.Fprintln(writer, "# Update these environment variables in your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	printKMSConfig(writer, kmsProvider, kmsKeyURI)
	_, _ = fmt.Fprintf(writer, "MASTER_KEYS=\"%s,%s\"\n", existingMasterKeys, entry)
	_, _ = fmt.Fprintf(writer, "ACTIVE_MASTER_KEY_VERSION=\"%d\"\n", next)
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintln(writer, "# Rotation Workflow:")
	_, _ = fmt.Fprintln(writer, "# 1. Update the above environment variables")
	_, _ = fmt.Fprintln(writer, "# 2. Restart the application")
	_, _ = fmt.Fprintln(writer, "# 3. Rewrap stored keys from every retired version:")
	for _, version := range retired {
		_, _ = fmt.Fprintf(writer, "#      app rewrap-keys --from-version %d\n", version)
	}
	_, _ = fmt.Fprintln(writer, "# 4. Remove each version from MASTER_KEYS once its rewrap reports it forgotten")

	return nil
}
