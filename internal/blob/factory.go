package blob

import (
	"context"
	"fmt"

	infrafs "fieldmonitor/internal/infra/blob/fs"
	memorystore "fieldmonitor/internal/infra/blob/memory"
	infraS3 "fieldmonitor/internal/infra/blob/s3"
	"fieldmonitor/internal/infra/persistence/postgres"
	"fieldmonitor/internal/infra/persistence/sqlite"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// Config selects and parameterises a backend.
type Config struct {
	Driver      Driver
	FSRoot      string
	SQLitePath  string
	PostgresDSN string
	S3          S3Config
}

// Open returns the Store named by cfg.Driver (default fs).
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case DriverPostgres:
		return postgres.Open(ctx, cfg.PostgresDSN)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown store driver %q (supported: %v)", driver, Drivers())
	}
}

// NewFilesystem constructs a filesystem-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return infrafs.New(root)
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}
