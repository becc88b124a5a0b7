// Package http provides the API and metrics HTTP servers.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/cryptoshred/internal/metrics"
	shredderHTTP "github.com/allisson/cryptoshred/internal/shredder/http"
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// RouterConfig holds the optional parts of the API router.
type RouterConfig struct {
	CORSEnabled      bool
	CORSAllowOrigins string
	MetricsProvider  *metrics.Provider
	MetricsNamespace string
}

// Server represents the API HTTP server.
type Server struct {
	server        *http.Server
	logger        *slog.Logger
	keyStoreReady ReadinessCheck
}

// NewServer creates a new API server. keyStoreReady may be nil for the volatile backend.
func NewServer(
	keyStoreReady ReadinessCheck,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		logger:        logger,
		keyStoreReady: keyStoreReady,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the gin engine with middleware, health endpoints and the record API.
func (s *Server) SetupRouter(cfg RouterConfig, recordHandler *shredderHTTP.RecordHandler) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if cfg.MetricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(cfg.MetricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	recordHandler.RegisterRoutes(v1)

	s.server.Handler = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	if s.server.Handler == nil {
		return fmt.Errorf("router not configured: call SetupRouter first")
	}

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler checks the key store. The volatile store is always ready.
func (s *Server) readinessHandler(c *gin.Context) {
	if s.keyStoreReady == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"components": gin.H{"key_store": "ok"},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.keyStoreReady(ctx); err != nil {
		s.logger.Warn("key store not ready", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"key_store": "error"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"key_store": "ok"},
	})
}
