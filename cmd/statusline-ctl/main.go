// statusline-ctl operates on a local statusline SQLite store: it loads
// events, answers status queries and manages snapshots.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/statusline/statusline/internal/eventstore"
	"github.com/statusline/statusline/internal/snapshot"
	"github.com/statusline/statusline/internal/storage"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Global flags
var (
	dbPath      string
	storagePath string
	workDir     string
	s3Bucket    string
	s3Region    string
	s3Endpoint  string
	s3PathStyle bool
)

var rootCmd = &cobra.Command{
	Use:     "statusline-ctl",
	Short:   "Operate on a local statusline event store",
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	Long: `statusline-ctl works directly against the SQLite event database used by
the statusline server.

Examples:
  # Load events from a JSON lines file
  statusline-ctl ingest events.jsonl --db ./data/statusline/events.db

  # Show the state intervals of one vehicle
  statusline-ctl status truck-7 --start 1700000000000 --end 1700003600000

  # Take a snapshot and ship it to S3
  statusline-ctl snapshot --s3-bucket fleet-snapshots`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/statusline/events.db", "SQLite event database")
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage-path", "./data/statusline/snapshots", "Local snapshot storage directory")
	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", os.TempDir(), "Directory for snapshot work files")
	rootCmd.PersistentFlags().StringVar(&s3Bucket, "s3-bucket", "", "Store snapshots in this S3 bucket instead of locally")
	rootCmd.PersistentFlags().StringVar(&s3Region, "s3-region", "", "AWS region of the S3 bucket")
	rootCmd.PersistentFlags().StringVar(&s3Endpoint, "s3-endpoint", "", "Custom S3 endpoint (MinIO, LocalStack)")
	rootCmd.PersistentFlags().BoolVar(&s3PathStyle, "s3-path-style", false, "Use path-style S3 addressing")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the SQLite event database named by --db.
func openStore() (*eventstore.SQLiteStore, error) {
	store, err := eventstore.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dbPath, err)
	}
	return store, nil
}

// openObjectStorage returns S3 storage when --s3-bucket is set and local
// storage otherwise.
func openObjectStorage(ctx context.Context) (storage.ObjectStorage, error) {
	if s3Bucket == "" {
		return storage.NewLocalStorage(storagePath)
	}
	cfg := storage.DefaultS3Config()
	if s3Region != "" {
		cfg.Region = s3Region
	}
	cfg.Endpoint = s3Endpoint
	cfg.UsePathStyle = s3PathStyle
	return storage.NewS3Storage(ctx, s3Bucket, cfg)
}

// newSnapshotter wires source (may be nil for restore-only use) to the
// configured object storage.
func newSnapshotter(ctx context.Context, source snapshot.Source, retain int) (*snapshot.Snapshotter, error) {
	objects, err := openObjectStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot storage: %w", err)
	}
	return snapshot.NewSnapshotter(source, objects, workDir, retain), nil
}
