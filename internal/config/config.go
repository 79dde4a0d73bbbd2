// Package config provides unified configuration for the statusline server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode represents the service mode to run.
type Mode string

const (
	ModeAll      Mode = "all"
	ModeAPI      Mode = "api"
	ModeSnapshot Mode = "snapshot"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StoreInfluxDB = "influxdb"
	StoreMemory   = "memory"
)

// Object storage backends for snapshots.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "STATUSLINE_"

// Config holds the unified configuration for the statusline server.
type Config struct {
	// Mode specifies which services to run: all, api, snapshot
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// gRPC configuration
	GRPC GRPCConfig `json:"grpc" yaml:"grpc"`

	// Event store configuration
	Store StoreConfig `json:"store" yaml:"store"`

	// Snapshot configuration
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the public API address
	Addr string `json:"addr" yaml:"addr"`

	// AdminAddr serves metrics and admin endpoints; empty disables it
	AdminAddr string `json:"admin_addr" yaml:"admin_addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	// Addr is the gRPC server address
	Addr string `json:"addr" yaml:"addr"`

	// Enabled controls whether gRPC is enabled
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// StoreConfig selects and configures the event store.
type StoreConfig struct {
	// Type is the backend: sqlite, influxdb, memory
	Type string `json:"type" yaml:"type"`

	// SQLitePath is the event database file (sqlite type)
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path"`

	// ExclusiveWriter declares that every write to the store goes through
	// this process. Required for the entity filter.
	ExclusiveWriter bool `json:"exclusive_writer" yaml:"exclusive_writer"`

	// BloomExpectedEntities sizes the known-entity filter; 0 disables it
	BloomExpectedEntities int `json:"bloom_expected_entities" yaml:"bloom_expected_entities"`

	// BloomFPR is the target false positive rate of the filter
	BloomFPR float64 `json:"bloom_fpr" yaml:"bloom_fpr"`

	// Influx configuration (influxdb type)
	Influx InfluxConfig `json:"influx" yaml:"influx"`
}

// InfluxConfig holds InfluxDB 2.x connection settings.
type InfluxConfig struct {
	URL         string `json:"url" yaml:"url"`
	Token       string `json:"token" yaml:"token"`
	Org         string `json:"org" yaml:"org"`
	Bucket      string `json:"bucket" yaml:"bucket"`
	Measurement string `json:"measurement" yaml:"measurement"`
}

// SnapshotConfig holds snapshot daemon configuration.
type SnapshotConfig struct {
	// Enabled controls whether the daemon runs
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Interval is the time between scheduled snapshots
	Interval time.Duration `json:"interval" yaml:"interval"`

	// Retain is how many snapshots to keep; 0 keeps all
	Retain int `json:"retain" yaml:"retain"`

	// WorkDir is the directory for snapshot work files
	WorkDir string `json:"work_dir" yaml:"work_dir"`

	// Storage is where snapshots are uploaded
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`

	// Prefix namespaces snapshot keys inside a shared bucket
	Prefix string `json:"prefix" yaml:"prefix"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeAll,
		DataDir: "./data/statusline",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			AdminAddr:    ":8081",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: true,
		},
		Store: StoreConfig{
			Type:                  StoreSQLite,
			BloomExpectedEntities: 0,
			BloomFPR:              0.01,
			Influx: InfluxConfig{
				Measurement: "events",
			},
		},
		Snapshot: SnapshotConfig{
			Enabled:  false,
			Interval: time.Hour,
			Retain:   24,
			Storage: StorageConfig{
				Type: StorageLocal,
			},
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/statusline"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = filepath.Join(c.DataDir, "events.db")
	}
	if c.Snapshot.WorkDir == "" {
		c.Snapshot.WorkDir = filepath.Join(c.DataDir, "snapshot-work")
	}
	if c.Snapshot.Storage.Path == "" {
		c.Snapshot.Storage.Path = filepath.Join(c.DataDir, "snapshots")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeAPI, ModeSnapshot:
		// Valid modes
	default:
		return fmt.Errorf("invalid mode: %s (must be all, api, or snapshot)", c.Mode)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Store.Type {
	case StoreSQLite, StoreMemory:
	case StoreInfluxDB:
		if c.Store.Influx.URL == "" || c.Store.Influx.Org == "" || c.Store.Influx.Bucket == "" {
			return fmt.Errorf("store.influx url, org and bucket are required when store type is influxdb")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be sqlite, influxdb, or memory)", c.Store.Type)
	}

	if c.Store.BloomExpectedEntities < 0 {
		return fmt.Errorf("store.bloom_expected_entities must not be negative, got %d", c.Store.BloomExpectedEntities)
	}
	if c.Store.BloomExpectedEntities > 0 {
		// The filter only learns entities written through this process.
		if !c.Store.ExclusiveWriter {
			return fmt.Errorf("store.bloom_expected_entities requires store.exclusive_writer")
		}
		if c.Store.BloomFPR <= 0 || c.Store.BloomFPR >= 1 {
			return fmt.Errorf("store.bloom_fpr must be in (0, 1), got %g", c.Store.BloomFPR)
		}
	}

	if c.Snapshot.Enabled || c.Mode == ModeSnapshot {
		if c.Store.Type != StoreSQLite {
			return fmt.Errorf("snapshots require the sqlite store, got %s", c.Store.Type)
		}
		if c.Snapshot.Interval <= 0 {
			return fmt.Errorf("snapshot.interval must be positive, got %s", c.Snapshot.Interval)
		}
	}
	if c.Snapshot.Retain < 0 {
		return fmt.Errorf("snapshot.retain must not be negative, got %d", c.Snapshot.Retain)
	}

	switch c.Snapshot.Storage.Type {
	case StorageLocal:
	case StorageS3:
		if c.Snapshot.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when storage type is s3")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Snapshot.Storage.Type)
	}

	return nil
}

// ShouldRunAPI returns true if the HTTP and gRPC APIs should run.
func (c *Config) ShouldRunAPI() bool {
	return c.Mode == ModeAll || c.Mode == ModeAPI
}

// ShouldRunSnapshot returns true if the snapshot daemon should run.
func (c *Config) ShouldRunSnapshot() bool {
	switch c.Mode {
	case ModeSnapshot:
		return true
	case ModeAll:
		return c.Snapshot.Enabled
	default:
		return false
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the STATUSLINE_ prefix.
func LoadFromEnv(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v == "true" || v == "1"
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			fmt.Sscanf(v, "%d", dst)
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	if v := os.Getenv(EnvPrefix + "MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	str("DATA_DIR", &cfg.DataDir)

	// HTTP configuration
	str("HTTP_ADDR", &cfg.HTTP.Addr)
	str("HTTP_ADMIN_ADDR", &cfg.HTTP.AdminAddr)
	duration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	duration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)

	// gRPC configuration
	str("GRPC_ADDR", &cfg.GRPC.Addr)
	boolean("GRPC_ENABLED", &cfg.GRPC.Enabled)

	// Store configuration
	str("STORE_TYPE", &cfg.Store.Type)
	str("STORE_SQLITE_PATH", &cfg.Store.SQLitePath)
	boolean("STORE_EXCLUSIVE_WRITER", &cfg.Store.ExclusiveWriter)
	integer("STORE_BLOOM_EXPECTED_ENTITIES", &cfg.Store.BloomExpectedEntities)
	if v := os.Getenv(EnvPrefix + "STORE_BLOOM_FPR"); v != "" {
		fmt.Sscanf(v, "%g", &cfg.Store.BloomFPR)
	}
	str("INFLUX_URL", &cfg.Store.Influx.URL)
	str("INFLUX_TOKEN", &cfg.Store.Influx.Token)
	str("INFLUX_ORG", &cfg.Store.Influx.Org)
	str("INFLUX_BUCKET", &cfg.Store.Influx.Bucket)
	str("INFLUX_MEASUREMENT", &cfg.Store.Influx.Measurement)

	// Snapshot configuration
	boolean("SNAPSHOT_ENABLED", &cfg.Snapshot.Enabled)
	duration("SNAPSHOT_INTERVAL", &cfg.Snapshot.Interval)
	integer("SNAPSHOT_RETAIN", &cfg.Snapshot.Retain)
	str("SNAPSHOT_WORK_DIR", &cfg.Snapshot.WorkDir)
	str("STORAGE_TYPE", &cfg.Snapshot.Storage.Type)
	str("STORAGE_PATH", &cfg.Snapshot.Storage.Path)
	str("S3_BUCKET", &cfg.Snapshot.Storage.S3.Bucket)
	str("S3_REGION", &cfg.Snapshot.Storage.S3.Region)
	str("S3_ENDPOINT", &cfg.Snapshot.Storage.S3.Endpoint)
	boolean("S3_USE_PATH_STYLE", &cfg.Snapshot.Storage.S3.UsePathStyle)
	str("S3_PREFIX", &cfg.Snapshot.Storage.S3.Prefix)
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Store.Type == StoreSQLite {
		dirs = append(dirs, filepath.Dir(c.Store.SQLitePath))
	}
	if c.ShouldRunSnapshot() {
		dirs = append(dirs, c.Snapshot.WorkDir)
		if c.Snapshot.Storage.Type == StorageLocal {
			dirs = append(dirs, c.Snapshot.Storage.Path)
		}
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
