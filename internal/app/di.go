// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/cryptoshred/internal/config"
	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
	cryptoService "github.com/allisson/cryptoshred/internal/crypto/service"
	"github.com/allisson/cryptoshred/internal/database"
	"github.com/allisson/cryptoshred/internal/http"
	"github.com/allisson/cryptoshred/internal/metrics"
	shredderHTTP "github.com/allisson/cryptoshred/internal/shredder/http"
	shredderUseCase "github.com/allisson/cryptoshred/internal/shredder/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	metricsProvider *metrics.Provider

	// Crypto
	kmsService       cryptoService.KMSService
	envelopeCipher   cryptoService.EnvelopeCipher
	masterKeyChain   *cryptoDomain.MasterKeyChain
	masterKeyManager cryptoService.MasterKeyManager

	// Shredder
	keyStore      shredderUseCase.KeyStore
	shredUseCase  shredderUseCase.ShredUseCase
	recordHandler *shredderHTTP.RecordHandler

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                   sync.Mutex
	loggerInit           sync.Once
	dbInit               sync.Once
	metricsProviderInit  sync.Once
	kmsServiceInit       sync.Once
	envelopeCipherInit   sync.Once
	masterKeyChainInit   sync.Once
	masterKeyManagerInit sync.Once
	keyStoreInit         sync.Once
	shredUseCaseInit     sync.Once
	recordHandlerInit    sync.Once
	httpServerInit       sync.Once
	metricsServerInit    sync.Once
	initErrors           map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.setInitError("db", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("db"); storedErr != nil {
		return nil, storedErr
	}
	return c.db, nil
}

// MetricsProvider returns the Prometheus-backed metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.setInitError("metricsProvider", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("metricsProvider"); storedErr != nil {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.setInitError("httpServer", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("httpServer"); storedErr != nil {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server instance, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.setInitError("metricsServer", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("metricsServer"); storedErr != nil {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	// Zeroize master key material last; nothing above needs it.
	if c.masterKeyChain != nil {
		c.masterKeyChain.Close()
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

func (c *Container) setInitError(component string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initErrors[component] = err
}

func (c *Container) initError(component string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[component]
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection for the SQL key store backends.
func (c *Container) initDB() (*sql.DB, error) {
	if !c.config.UsesDatabase() {
		return nil, fmt.Errorf("key store backend %q does not use a database", c.config.KeyStoreBackend)
	}

	db, err := database.Connect(context.Background(), database.Config{
		Driver:             c.config.KeyStoreBackend,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initMetricsProvider creates the metrics provider when metrics are enabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initHTTPServer creates the API server and wires the record routes.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	recordHandler, err := c.RecordHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get record handler for http server: %w", err)
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	var keyStoreReady http.ReadinessCheck
	if c.config.UsesDatabase() {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for http server: %w", err)
		}
		keyStoreReady = db.PingContext
	}

	server := http.NewServer(keyStoreReady, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(http.RouterConfig{
		CORSEnabled:      c.config.CORSEnabled,
		CORSAllowOrigins: c.config.CORSAllowOrigins,
		MetricsProvider:  provider,
		MetricsNamespace: c.config.MetricsNamespace,
	}, recordHandler)

	return server, nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
