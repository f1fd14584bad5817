// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/vibranic/central/internal/alerting"
	"github.com/vibranic/central/internal/api/health"
	"github.com/vibranic/central/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address         string
	AdminSecret     []byte        // Shared secret for admin token signing
	AdminTokenTTL   time.Duration // Lifetime of minted admin tokens
	RateLimitPerKey float64       // Sustained ingestion requests per second per API key
	RateLimitBurst  int           // Ingestion burst allowance per API key
	QueryTimeout    time.Duration // Timeout for storage-backed API calls
	Verbose         bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.AdminTokenTTL == 0 {
		c.AdminTokenTTL = 24 * time.Hour
	}
	if c.RateLimitPerKey == 0 {
		c.RateLimitPerKey = 50 // 50 requests per second
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 100
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 10 * time.Second
	}
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	storage       storage.Storage
	telemetry     storage.TelemetryStorage
	evaluator     *alerting.Evaluator
	server        *http.Server
	healthHandler *health.Handler
}

// New creates a new API server.
func New(cfg *Config, store storage.Storage, telemetry storage.TelemetryStorage, evaluator *alerting.Evaluator) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if telemetry == nil {
		return nil, fmt.Errorf("telemetry storage is required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("alert evaluator is required")
	}
	if len(cfg.AdminSecret) == 0 {
		return nil, fmt.Errorf("admin secret is required")
	}

	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		storage:       store,
		telemetry:     telemetry,
		evaluator:     evaluator,
		healthHandler: health.NewHandler(),
	}

	router := s.setupRouter()

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		log.Printf("HTTP API listening on %s", s.config.Address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down HTTP API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}
