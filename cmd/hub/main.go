package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vibranic/central/internal/alerting"
	"github.com/vibranic/central/internal/api"
	"github.com/vibranic/central/internal/api/health"
	"github.com/vibranic/central/internal/metrics"
	"github.com/vibranic/central/internal/storage"
	"github.com/vibranic/central/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "hub",
	Short: "Vibranic Central - Multi-tenant telemetry hub",
	Long: `Vibranic Central receives diagnostic events and metric snapshots
from instrumented applications, derives health status, and evaluates
alert rules over the incoming stream.`,
	RunE: runHub,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hub %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runHub(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.Address = httpAddr
	}
	cfg.Verbose = verbose

	if cfg.Auth.AdminSecret == "" {
		return fmt.Errorf("auth.admin_secret or VIBRANIC_ADMIN_SECRET environment variable is required")
	}

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize metadata storage
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)

	// Initialize telemetry storage
	telemetry, err := openTelemetry(cfg)
	if err != nil {
		return err
	}
	defer telemetry.Close()

	if err := telemetry.Migrate(); err != nil {
		return fmt.Errorf("migrate telemetry storage: %w", err)
	}

	log.Printf("telemetry backend: %s", cfg.Telemetry.Backend)

	evaluator := alerting.NewEvaluator(store, telemetry)

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	// Provision alert rules from file if configured
	var loader *alerting.Loader
	if cfg.Alerting.RulesFile != "" {
		loader = alerting.NewLoader(store, cfg.Alerting.RulesFile)
		if err := loader.Load(ctx); err != nil {
			return fmt.Errorf("load alert rules: %w", err)
		}
	}

	// Build API server
	srv, err := api.New(&api.Config{
		Address:         cfg.Server.Address,
		AdminSecret:     []byte(cfg.Auth.AdminSecret),
		AdminTokenTTL:   cfg.Auth.TokenTTLDuration(),
		RateLimitPerKey: cfg.RateLimit.PerKey,
		RateLimitBurst:  cfg.RateLimit.Burst,
		Verbose:         cfg.Verbose,
	}, store, telemetry, evaluator)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}

	srv.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))
	srv.RegisterHealthChecker(health.NewTelemetryChecker(telemetry))

	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)
	metricsSrv := metrics.NewServer(cfg.Server.MetricsAddress)

	log.Printf("starting hub %s", config.Version)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return metricsSrv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if loader != nil {
		g.Go(func() error {
			return loader.Watch(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run hub: %w", err)
	}

	log.Printf("hub stopped")
	return nil
}

// openTelemetry opens the configured telemetry backend.
func openTelemetry(cfg *Config) (storage.TelemetryStorage, error) {
	switch cfg.Telemetry.Backend {
	case "clickhouse":
		ch := storage.NewClickHouseTelemetryStorage(&storage.ClickHouseConfig{
			Addresses:     cfg.Telemetry.ClickHouse.Addresses,
			Database:      cfg.Telemetry.ClickHouse.Database,
			Username:      cfg.Telemetry.ClickHouse.Username,
			Password:      cfg.Telemetry.ClickHouse.Password,
			Compression:   cfg.Telemetry.ClickHouse.Compression,
			RetentionDays: cfg.Telemetry.ClickHouse.RetentionDays,
		})
		if err := ch.Open(); err != nil {
			return nil, fmt.Errorf("open clickhouse: %w", err)
		}
		return ch, nil
	default:
		dir := filepath.Dir(cfg.Telemetry.Path)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create telemetry directory: %w", err)
		}
		ts := storage.NewSQLiteTelemetryStorage(cfg.Telemetry.Path)
		if err := ts.Open(); err != nil {
			return nil, fmt.Errorf("open telemetry database: %w", err)
		}
		return ts, nil
	}
}
