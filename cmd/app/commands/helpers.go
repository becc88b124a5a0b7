// Package commands contains CLI command implementations for the application.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/allisson/cryptoshred/internal/app"
	"github.com/allisson/cryptoshred/internal/config"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// CloseContainer closes all resources in the container and logs any errors.
func CloseContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// RequireDurableKeyStore rejects offline commands against the in-memory backend, whose
// contents only exist inside a running server.
func RequireDurableKeyStore(cfg *config.Config) error {
	if !cfg.UsesDatabase() {
		return fmt.Errorf(
			"KEYSTORE_BACKEND=%s holds no data outside a running server, use postgres or mysql",
			cfg.KeyStoreBackend,
		)
	}
	return nil
}
