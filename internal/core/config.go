package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tasktrack/internal/blob"

	"gopkg.in/yaml.v3"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageFile     StorageDriver = "file"     // CSV files in a blob store
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// MetricsDriver selects the metrics sink.
type MetricsDriver string

const (
	MetricsNone       MetricsDriver = "none"
	MetricsExpvar     MetricsDriver = "expvar"
	MetricsPrometheus MetricsDriver = "prometheus"
)

// Config is the explicit configuration passed to Open.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig selects and configures the item store backend.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
	File        FileConfig    `yaml:"file"`
}

// FileConfig configures the flat-file backend.
type FileConfig struct {
	BlobDriver blob.Driver   `yaml:"blob_driver"`
	Root       string        `yaml:"root"`
	S3         blob.S3Config `yaml:"s3"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// MetricsConfig configures the metrics sink.
type MetricsConfig struct {
	Driver    MetricsDriver `yaml:"driver"`
	Namespace string        `yaml:"namespace"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the optional YAML file at path, applies TASKTRACK_*
// environment overrides, and fills defaults.
//
//	TASKTRACK_STORAGE_DRIVER: memory|file|sqlite|postgres (default memory)
//	TASKTRACK_SQLITE_PATH: path to sqlite file
//	TASKTRACK_POSTGRES_DSN: postgres DSN when driver=postgres
//	TASKTRACK_FILE_BLOB_DRIVER: fs|memory|s3 (default fs)
//	TASKTRACK_FILE_ROOT: directory for the fs blob driver (default ./data)
//	TASKTRACK_S3_BUCKET, TASKTRACK_S3_REGION, TASKTRACK_S3_ENDPOINT,
//	TASKTRACK_S3_PREFIX, TASKTRACK_S3_PATH_STYLE, TASKTRACK_S3_ACCESS_KEY_ID,
//	TASKTRACK_S3_SECRET_ACCESS_KEY: s3 blob driver settings
//	TASKTRACK_LOG_MODE: dev|prod (default dev)
//	TASKTRACK_METRICS_DRIVER: none|expvar|prometheus (default none)
//	TASKTRACK_METRICS_NAMESPACE: metric name prefix
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var storage, blobDriver, metrics string
	set("TASKTRACK_STORAGE_DRIVER", &storage)
	set("TASKTRACK_FILE_BLOB_DRIVER", &blobDriver)
	set("TASKTRACK_METRICS_DRIVER", &metrics)
	if storage != "" {
		c.Storage.Driver = StorageDriver(storage)
	}
	if blobDriver != "" {
		c.Storage.File.BlobDriver = blob.Driver(blobDriver)
	}
	if metrics != "" {
		c.Metrics.Driver = MetricsDriver(metrics)
	}
	set("TASKTRACK_SQLITE_PATH", &c.Storage.SQLitePath)
	set("TASKTRACK_POSTGRES_DSN", &c.Storage.PostgresDSN)
	set("TASKTRACK_FILE_ROOT", &c.Storage.File.Root)
	set("TASKTRACK_S3_BUCKET", &c.Storage.File.S3.Bucket)
	set("TASKTRACK_S3_REGION", &c.Storage.File.S3.Region)
	set("TASKTRACK_S3_ENDPOINT", &c.Storage.File.S3.Endpoint)
	set("TASKTRACK_S3_PREFIX", &c.Storage.File.S3.Prefix)
	set("TASKTRACK_S3_ACCESS_KEY_ID", &c.Storage.File.S3.AccessKeyID)
	set("TASKTRACK_S3_SECRET_ACCESS_KEY", &c.Storage.File.S3.SecretAccessKey)
	set("TASKTRACK_LOG_MODE", &c.Log.Mode)
	set("TASKTRACK_METRICS_NAMESPACE", &c.Metrics.Namespace)
	if v, ok := lookup("TASKTRACK_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TASKTRACK_S3_PATH_STYLE: %w", err)
		}
		c.Storage.File.S3.PathStyle = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMemory
	}
	if c.Storage.File.BlobDriver == "" {
		c.Storage.File.BlobDriver = blob.DriverFilesystem
	}
	if c.Storage.File.Root == "" {
		c.Storage.File.Root = "./data"
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "dev"
	}
	if c.Metrics.Driver == "" {
		c.Metrics.Driver = MetricsNone
	}
}

// Validate rejects unknown drivers and incomplete backend settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	case StorageFile:
		switch c.Storage.File.BlobDriver {
		case blob.DriverFilesystem, blob.DriverMemory:
		case blob.DriverS3:
			if c.Storage.File.S3.Bucket == "" {
				return fmt.Errorf("config: storage.file.s3.bucket required for s3 blob driver")
			}
		default:
			return fmt.Errorf("config: unknown blob driver %q", c.Storage.File.BlobDriver)
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Metrics.Driver {
	case MetricsNone, MetricsExpvar, MetricsPrometheus:
	default:
		return fmt.Errorf("config: unknown metrics driver %q", c.Metrics.Driver)
	}
	switch strings.ToLower(c.Log.Mode) {
	case "dev", "development", "prod", "production":
	default:
		return fmt.Errorf("config: unknown log mode %q", c.Log.Mode)
	}
	return nil
}
