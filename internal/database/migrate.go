package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationsDir returns the migrations sub-directory for a database driver.
func MigrationsDir(driver string) string {
	if driver == "mysql" {
		return "mysql"
	}
	return "postgresql"
}

// FindMigrationsPath walks up from the working directory until migrations/<dir> exists.
func FindMigrationsPath(driver string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	sub := MigrationsDir(driver)
	for {
		migrationsPath := filepath.Join(dir, "migrations", sub)
		if _, err := os.Stat(migrationsPath); err == nil {
			return migrationsPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("migrations directory not found for %s (started from %s)", driver, dir)
		}
		dir = parent
	}
}

// MigrationURL converts a connection string into the URL form golang-migrate expects.
// MySQL DSNs ("user:pass@tcp(host)/db") are prefixed with the mysql scheme.
func MigrationURL(driver, connectionString string) string {
	if driver == "mysql" {
		return "mysql://" + connectionString
	}
	return connectionString
}

// RunMigrations applies every pending migration found under migrationsPath.
func RunMigrations(logger *slog.Logger, driver, connectionString, migrationsPath string) error {
	logger.Info("running database migrations",
		slog.String("driver", driver),
		slog.String("path", migrationsPath),
	)

	m, err := migrate.New("file://"+migrationsPath, MigrationURL(driver, connectionString))
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		sourceErr, databaseErr := m.Close()
		if sourceErr != nil || databaseErr != nil {
			logger.Error("failed to close the migrate",
				slog.Any("source_error", sourceErr),
				slog.Any("database_error", databaseErr),
			)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}
