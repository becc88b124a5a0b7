package app

import (
	"fmt"

	"github.com/allisson/cryptoshred/internal/config"
	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
	"github.com/allisson/cryptoshred/internal/metrics"
	shredderHTTP "github.com/allisson/cryptoshred/internal/shredder/http"
	"github.com/allisson/cryptoshred/internal/shredder/repository/cached"
	"github.com/allisson/cryptoshred/internal/shredder/repository/memory"
	"github.com/allisson/cryptoshred/internal/shredder/repository/mysql"
	"github.com/allisson/cryptoshred/internal/shredder/repository/postgresql"
	shredderUseCase "github.com/allisson/cryptoshred/internal/shredder/usecase"
)

// KeyStore returns the wrapped DEK store selected by KEYSTORE_BACKEND.
func (c *Container) KeyStore() (shredderUseCase.KeyStore, error) {
	var err error
	c.keyStoreInit.Do(func() {
		c.keyStore, err = c.initKeyStore()
		if err != nil {
			c.setInitError("keyStore", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("keyStore"); storedErr != nil {
		return nil, storedErr
	}
	return c.keyStore, nil
}

// ShredUseCase returns the crypto-shred use case.
func (c *Container) ShredUseCase() (shredderUseCase.ShredUseCase, error) {
	var err error
	c.shredUseCaseInit.Do(func() {
		c.shredUseCase, err = c.initShredUseCase()
		if err != nil {
			c.setInitError("shredUseCase", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("shredUseCase"); storedErr != nil {
		return nil, storedErr
	}
	return c.shredUseCase, nil
}

// RecordHandler returns the HTTP handler for record operations.
func (c *Container) RecordHandler() (*shredderHTTP.RecordHandler, error) {
	var err error
	c.recordHandlerInit.Do(func() {
		c.recordHandler, err = c.initRecordHandler()
		if err != nil {
			c.setInitError("recordHandler", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("recordHandler"); storedErr != nil {
		return nil, storedErr
	}
	return c.recordHandler, nil
}

// initKeyStore creates the key store, fronting SQL backends with the shard cache when enabled.
func (c *Container) initKeyStore() (shredderUseCase.KeyStore, error) {
	if c.config.KeyStoreBackend == config.KeyStoreMemory {
		c.Logger().Warn("using the volatile in-memory key store, every record becomes unreadable on restart")
		return memory.NewKeyStore(c.config.KeyStoreShards), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for key store: %w", err)
	}

	var durable cached.Durable
	switch c.config.KeyStoreBackend {
	case config.KeyStorePostgres:
		durable = postgresql.NewKeyStore(db, c.config.RewrapBatchSize)
	case config.KeyStoreMySQL:
		durable = mysql.NewKeyStore(db, c.config.RewrapBatchSize)
	default:
		return nil, fmt.Errorf("unsupported key store backend: %s", c.config.KeyStoreBackend)
	}

	if !c.config.KeyStoreCacheEnabled {
		return durable, nil
	}
	return cached.NewKeyStore(durable, c.config.KeyStoreShards), nil
}

// initShredUseCase creates the crypto-shred use case, decorated with metrics when enabled.
func (c *Container) initShredUseCase() (shredderUseCase.ShredUseCase, error) {
	algorithm, err := cryptoDomain.ParseAlgorithm(c.config.DEKAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("invalid DEK_ALGORITHM: %w", err)
	}

	keyStore, err := c.KeyStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get key store for shred use case: %w", err)
	}

	masterKeys, err := c.MasterKeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key manager for shred use case: %w", err)
	}

	useCase := shredderUseCase.NewShredUseCase(
		keyStore,
		c.EnvelopeCipher(),
		masterKeys,
		algorithm,
		shredderUseCase.RewrapConfig{
			Concurrency:   c.config.RewrapConcurrency,
			RatePerSecond: c.config.RewrapRatePerSec,
			MaxPasses:     c.config.RewrapMaxPasses,
		},
		c.Logger(),
	)

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for shred use case: %w", err)
	}
	if provider == nil {
		return useCase, nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return shredderUseCase.NewShredUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initRecordHandler() (*shredderHTTP.RecordHandler, error) {
	useCase, err := c.ShredUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get shred use case for record handler: %w", err)
	}
	return shredderHTTP.NewRecordHandler(useCase, c.Logger()), nil
}
