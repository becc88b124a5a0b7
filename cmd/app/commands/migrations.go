package commands

import (
	"fmt"
	"log/slog"

	"github.com/allisson/cryptoshred/internal/config"
	"github.com/allisson/cryptoshred/internal/database"
)

// RunMigrations creates the wrapped_keys table for the configured SQL backend.
// migrationsPath may be empty, in which case migrations/<driver> is searched for upward
// from the working directory.
func RunMigrations(logger *slog.Logger, cfg *config.Config, migrationsPath string) error {
	if err := RequireDurableKeyStore(cfg); err != nil {
		return err
	}

	if migrationsPath == "" {
		path, err := database.FindMigrationsPath(cfg.KeyStoreBackend)
		if err != nil {
			return fmt.Errorf("failed to locate migrations: %w", err)
		}
		migrationsPath = path
	}

	return database.RunMigrations(logger, cfg.KeyStoreBackend, cfg.DBConnectionString, migrationsPath)
}
