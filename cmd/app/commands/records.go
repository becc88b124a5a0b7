package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
	shredderUseCase "github.com/allisson/cryptoshred/internal/shredder/usecase"
)

// RunShred erases the record id by destroying its wrapped DEK. Shredding an unknown or
// already shredded id succeeds.
func RunShred(
	ctx context.Context,
	useCase shredderUseCase.ShredUseCase,
	logger *slog.Logger,
	writer io.Writer,
	recordID string,
) error {
	id, err := shredderDomain.ParseRecordID(recordID)
	if err != nil {
		return err
	}

	if err := useCase.Shred(ctx, id); err != nil {
		return fmt.Errorf("failed to shred record %s: %w", id, err)
	}

	logger.Info("record shredded", slog.String("record_id", id.String()))
	_, _ = fmt.Fprintf(writer, "Record %s shredded\n", id)
	return nil
}

// RunExportWrappedKey prints the record's wrapped DEK in its text blob form.
func RunExportWrappedKey(
	ctx context.Context,
	useCase shredderUseCase.ShredUseCase,
	writer io.Writer,
	recordID string,
) error {
	id, err := shredderDomain.ParseRecordID(recordID)
	if err != nil {
		return err
	}

	blob, err := useCase.ExportWrappedKey(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to export wrapped key for record %s: %w", id, err)
	}

	_, _ = fmt.Fprintln(writer, blob.String())
	return nil
}

// RunRestoreWrappedKey re-inserts an exported blob for the record id. When blobText is
// empty the blob is read from reader.
func RunRestoreWrappedKey(
	ctx context.Context,
	useCase shredderUseCase.ShredUseCase,
	logger *slog.Logger,
	streams IOTuple,
	recordID, blobText string,
) error {
	id, err := shredderDomain.ParseRecordID(recordID)
	if err != nil {
		return err
	}

	if blobText == "" {
		raw, err := io.ReadAll(streams.Reader)
		if err != nil {
			return fmt.Errorf("failed to read wrapped key: %w", err)
		}
		blobText = string(raw)
	}

	blob, err := shredderDomain.ParseWrappedKeyBlob(strings.TrimSpace(blobText))
	if err != nil {
		return err
	}

	if err := useCase.RestoreWrappedKey(ctx, id, blob); err != nil {
		return fmt.Errorf("failed to restore wrapped key for record %s: %w", id, err)
	}

	logger.Info("wrapped key restored", slog.String("record_id", id.String()))
	_, _ = fmt.Fprintf(streams.Writer, "Wrapped key for record %s restored\n", id)
	return nil
}
