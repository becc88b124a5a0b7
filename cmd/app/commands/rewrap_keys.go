package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	shredderUseCase "github.com/allisson/cryptoshred/internal/shredder/usecase"
)

// RunRewrapKeys moves every wrapped DEK under fromVersion to the active master key version.
// fromVersion is forgotten in this process once nothing is left under it; the operator
// then drops it from MASTER_KEYS.
func RunRewrapKeys(
	ctx context.Context,
	useCase shredderUseCase.ShredUseCase,
	logger *slog.Logger,
	writer io.Writer,
	fromVersion uint,
) error {
	if fromVersion == 0 {
		return fmt.Errorf("from-version must be greater than 0")
	}

	logger.Info("starting rewrap", slog.Uint64("from_version", uint64(fromVersion)))

	stats, err := useCase.RewrapAll(ctx, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to rewrap keys from version %d: %w", fromVersion, err)
	}

	logger.Info("rewrap completed",
		slog.Uint64("from_version", uint64(stats.FromVersion)),
		slog.Uint64("to_version", uint64(stats.ToVersion)),
		slog.Int64("rewrapped", stats.Rewrapped),
		slog.Int64("skipped", stats.Skipped),
		slog.Int("passes", stats.Passes),
		slog.Duration("duration", stats.Duration),
	)

	_, _ = fmt.Fprintf(writer, "Rewrapped %d keys from version %d to version %d in %d passes\n",
		stats.Rewrapped, stats.FromVersion, stats.ToVersion, stats.Passes)
	if stats.Forgot {
		_, _ = fmt.Fprintf(writer, "Version %d holds no keys and can be removed from MASTER_KEYS\n", stats.FromVersion)
	}

	return nil
}
