package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/cryptoshred/internal/metrics"
	shredderHTTP "github.com/allisson/cryptoshred/internal/shredder/http"
	usecaseMocks "github.com/allisson/cryptoshred/internal/shredder/usecase/mocks"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, ready ReadinessCheck, cfg RouterConfig) (*Server, *usecaseMocks.MockShredUseCase) {
	t.Helper()
	mockUseCase := &usecaseMocks.MockShredUseCase{}
	server := NewServer(ready, "localhost", 0, discardLogger())
	server.SetupRouter(cfg, shredderHTTP.NewRecordHandler(mockUseCase, discardLogger()))
	return server, mockUseCase
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer_Health(t *testing.T) {
	server, _ := newTestServer(t, nil, RouterConfig{})

	w := get(server.GetHandler(), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestServer_Readiness(t *testing.T) {
	t.Run("volatile store", func(t *testing.T) {
		server, _ := newTestServer(t, nil, RouterConfig{})
		w := get(server.GetHandler(), "/ready")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("durable store reachable", func(t *testing.T) {
		server, _ := newTestServer(t, func(context.Context) error { return nil }, RouterConfig{})
		w := get(server.GetHandler(), "/ready")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("durable store down", func(t *testing.T) {
		server, _ := newTestServer(t, func(context.Context) error { return errors.New("connection refused") }, RouterConfig{})
		w := get(server.GetHandler(), "/ready")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "not_ready", response["status"])
		assert.Equal(t, map[string]interface{}{"key_store": "error"}, response["components"])
	})
}

func TestServer_RecordRoutes(t *testing.T) {
	provider, err := metrics.NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	server, mockUseCase := newTestServer(t, nil, RouterConfig{
		MetricsProvider:  provider,
		MetricsNamespace: "test_app",
	})
	id := uuid.Must(uuid.NewV7())
	mockUseCase.On("Shred", mock.Anything, id).Return(nil).Once()

	w := httptest.NewRecorder()
	server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/records/"+id.String(), nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	mockUseCase.AssertExpectations(t)

	t.Run("metrics are not exposed on the api", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(server.GetHandler(), "/metrics").Code)
	})
}

func TestServer_StartRequiresRouter(t *testing.T) {
	server := NewServer(nil, "localhost", 0, discardLogger())
	assert.Error(t, server.Start(context.Background()))
}

func TestServer_ShutdownGracefully(t *testing.T) {
	server, _ := newTestServer(t, nil, RouterConfig{})

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(context.Background())
	}()

	time.Sleep(100 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(shutdownCtx))
	assert.NoError(t, <-errChan)
}

func TestRecoveryAndLoggerMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := get(router, "/panic")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsServer_Endpoints(t *testing.T) {
	provider, err := metrics.NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	metricsServer := NewMetricsServer("localhost", 8081, discardLogger(), provider)

	w := get(metricsServer.GetHandler(), "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
