// Package main implements the unified statusline binary.
// This binary runs the status API, the snapshot daemon, or both, based on
// the --mode flag.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/statusline/statusline/internal/app"
	"github.com/statusline/statusline/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configFile  string
		dataDir     string
		mode        string
		httpAddr    string
		adminAddr   string
		grpcAddr    string
		storeType   string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&mode, "mode", "", "Service mode: all, api, snapshot")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP address for the status API")
	flag.StringVar(&adminAddr, "admin-addr", "", "HTTP address for metrics and admin endpoints")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC server address")
	flag.StringVar(&storeType, "store", "", "Event store: sqlite, influxdb, memory")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "statusline - entity state intervals over an event log\n\n")
		fmt.Fprintf(os.Stderr, "Usage: statusline [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  statusline --data-dir /data/statusline\n")
		fmt.Fprintf(os.Stderr, "  statusline --mode api --store influxdb --config /etc/statusline/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  STATUSLINE_MODE            Service mode (all, api, snapshot)\n")
		fmt.Fprintf(os.Stderr, "  STATUSLINE_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  STATUSLINE_HTTP_ADDR       HTTP address for the status API\n")
		fmt.Fprintf(os.Stderr, "  STATUSLINE_GRPC_ADDR       gRPC server address\n")
		fmt.Fprintf(os.Stderr, "  STATUSLINE_STORE_TYPE      Event store (sqlite, influxdb, memory)\n")
		fmt.Fprintf(os.Stderr, "  STATUSLINE_INFLUX_*        InfluxDB connection settings\n")
		fmt.Fprintf(os.Stderr, "  STATUSLINE_SNAPSHOT_*      Snapshot daemon settings\n")
		fmt.Fprintf(os.Stderr, "  STATUSLINE_STORAGE_TYPE    Snapshot storage (local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("statusline version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := loadConfig(configFile, dataDir, mode, httpAddr, adminAddr, grpcAddr, storeType)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create and start the application
	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	printBanner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	// Wait for shutdown signal
	if err := application.WaitForShutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	// Graceful shutdown
	if err := application.Stop(context.Background()); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, mode, httpAddr, adminAddr, grpcAddr, storeType string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if adminAddr != "" {
		cfg.HTTP.AdminAddr = adminAddr
	}
	if grpcAddr != "" {
		cfg.GRPC.Addr = grpcAddr
	}
	if storeType != "" {
		cfg.Store.Type = storeType
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("statusline %s (commit: %s)", version, commit)
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Mode:     %s", cfg.Mode)
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  Store:    %s", cfg.Store.Type)
	if cfg.Store.Type == config.StoreSQLite {
		log.Printf("  Database: %s", cfg.Store.SQLitePath)
	}
	log.Printf("")

	if cfg.ShouldRunAPI() {
		log.Printf("Status API:")
		log.Printf("  HTTP: %s", cfg.HTTP.Addr)
		if cfg.GRPC.Enabled {
			log.Printf("  gRPC: %s", cfg.GRPC.Addr)
		}
	}

	if cfg.HTTP.AdminAddr != "" {
		log.Printf("Admin:")
		log.Printf("  HTTP: %s", cfg.HTTP.AdminAddr)
	}

	if cfg.ShouldRunSnapshot() {
		log.Printf("Snapshots:")
		log.Printf("  Interval: %v", cfg.Snapshot.Interval)
		log.Printf("  Retain:   %d", cfg.Snapshot.Retain)
		log.Printf("  Storage:  %s", cfg.Snapshot.Storage.Type)
	}

	log.Printf("")
}
