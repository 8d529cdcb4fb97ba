package core

import (
	"context"
	"fmt"

	"tasktrack/internal/blob"
	"tasktrack/internal/infra/persistence/file"
	"tasktrack/internal/infra/persistence/memory"
	"tasktrack/internal/infra/persistence/postgres"
	"tasktrack/internal/infra/persistence/sqlite"
	"tasktrack/internal/platform/logger"
)

// OpenPersistentStore builds the backend selected by cfg.Driver.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig) (PersistentStore, error) {
	switch cfg.Driver {
	case StorageMemory, "":
		return memory.NewStore(), nil
	case StorageFile:
		blobs, err := blob.Open(ctx, blob.Config{Driver: cfg.File.BlobDriver, Root: cfg.File.Root, S3: cfg.File.S3})
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		fs, err := file.NewStore(ctx, blobs)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case StorageSQLite:
		ss, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return ss, nil
	case StoragePostgres:
		ps, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// Open validates cfg, opens the configured store, and returns a ready
// Service wired with the configured logger and metrics sink. Extra options
// are applied after the configured ones.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	zl, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	store, err := OpenPersistentStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	base := []Option{WithLogger(zl.With("storage", string(cfg.Storage.Driver)))}
	switch cfg.Metrics.Driver {
	case MetricsExpvar:
		base = append(base, WithMetricsRecorder(NewExpvarMetricsRecorder(cfg.Metrics.Namespace)))
	case MetricsPrometheus:
		base = append(base, WithMetricsRecorder(NewPrometheusMetricsRecorder(cfg.Metrics.Namespace)))
	}
	svc, err := NewService(ctx, store, append(base, opts...)...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}
