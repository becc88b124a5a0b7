package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/cryptoshred/internal/config"
	"github.com/allisson/cryptoshred/internal/shredder/repository/memory"
	"github.com/allisson/cryptoshred/internal/testutil"
)

func newMemoryConfig() *config.Config {
	return &config.Config{
		ServerHost:             "localhost",
		ServerPort:             8080,
		LogLevel:               "error",
		KeyStoreBackend:        config.KeyStoreMemory,
		KeyStoreShards:         4,
		MasterKeys:             testutil.MasterKeysEnv(testutil.MasterKey(0x01)),
		ActiveMasterKeyVersion: 1,
		DEKAlgorithm:           "aes-gcm",
		MetricsNamespace:       "cryptoshred_test",
		MetricsPort:            8081,
	}
}

func TestNewContainer(t *testing.T) {
	cfg := newMemoryConfig()
	container := NewContainer(cfg)

	require.NotNil(t, container)
	assert.Same(t, cfg, container.Config())
}

func TestContainerLogger(t *testing.T) {
	container := NewContainer(&config.Config{LogLevel: "debug"})

	assert.Nil(t, container.logger, "logger must not be built before first access")
	logger := container.Logger()
	require.NotNil(t, logger)
	assert.Same(t, logger, container.Logger())
}

func TestContainerLoggerDefaultLevel(t *testing.T) {
	container := NewContainer(&config.Config{LogLevel: "invalid"})
	assert.NotNil(t, container.Logger())
}

func TestContainerDB_MemoryBackend(t *testing.T) {
	container := NewContainer(newMemoryConfig())

	_, err := container.DB()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not use a database")

	_, err = container.DB()
	assert.Error(t, err, "initialization error must be sticky")
}

func TestContainerKeyStore_Memory(t *testing.T) {
	container := NewContainer(newMemoryConfig())

	store, err := container.KeyStore()
	require.NoError(t, err)
	assert.IsType(t, &memory.KeyStore{}, store)
}

func TestContainerShredUseCase(t *testing.T) {
	container := NewContainer(newMemoryConfig())
	t.Cleanup(func() { _ = container.Shutdown(context.Background()) })

	useCase, err := container.ShredUseCase()
	require.NoError(t, err)

	ctx := context.Background()
	record, err := useCase.LogEvent(ctx, []byte("hello"))
	require.NoError(t, err)

	plaintext, err := useCase.ReadEvent(ctx, record)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), plaintext)

	require.NoError(t, useCase.Shred(ctx, record.RecordID))
	_, err = useCase.ReadEvent(ctx, record)
	assert.Error(t, err)
}

func TestContainerShredUseCase_InvalidAlgorithm(t *testing.T) {
	cfg := newMemoryConfig()
	cfg.DEKAlgorithm = "des"
	container := NewContainer(cfg)

	_, err := container.ShredUseCase()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEK_ALGORITHM")
}

func TestContainerMasterKeyChain_Missing(t *testing.T) {
	cfg := newMemoryConfig()
	cfg.MasterKeys = ""
	container := NewContainer(cfg)

	_, err := container.MasterKeyChain()
	assert.Error(t, err)

	_, err = container.HTTPServer()
	assert.Error(t, err)
}

func TestContainerHTTPServer(t *testing.T) {
	container := NewContainer(newMemoryConfig())
	t.Cleanup(func() { _ = container.Shutdown(context.Background()) })

	server, err := container.HTTPServer()
	require.NoError(t, err)

	again, err := container.HTTPServer()
	require.NoError(t, err)
	assert.Same(t, server, again)

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	metricsServer, err := container.MetricsServer()
	require.NoError(t, err)
	assert.Nil(t, metricsServer, "metrics are disabled")
}

func TestContainerMetricsEnabled(t *testing.T) {
	cfg := newMemoryConfig()
	cfg.MetricsEnabled = true
	container := NewContainer(cfg)
	t.Cleanup(func() { _ = container.Shutdown(context.Background()) })

	useCase, err := container.ShredUseCase()
	require.NoError(t, err)
	_, err = useCase.LogEvent(context.Background(), []byte("counted"))
	require.NoError(t, err)

	metricsServer, err := container.MetricsServer()
	require.NoError(t, err)
	require.NotNil(t, metricsServer)

	w := httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cryptoshred_test_operations_total")
}

func TestContainerShutdown(t *testing.T) {
	container := NewContainer(&config.Config{LogLevel: "info"})
	assert.NoError(t, container.Shutdown(context.Background()))
}

func TestContainerShutdown_ZeroizesMasterKeys(t *testing.T) {
	container := NewContainer(newMemoryConfig())

	chain, err := container.MasterKeyChain()
	require.NoError(t, err)
	require.Equal(t, uint(1), chain.ActiveVersion())

	require.NoError(t, container.Shutdown(context.Background()))
	assert.Empty(t, chain.Versions())
}
