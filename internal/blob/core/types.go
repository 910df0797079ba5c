// Package core holds the byte store contract shared by the persistence
// backends. Collections and export artifacts are both stored as opaque
// payloads under string keys.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver names a backend. Values double as configuration strings.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
	DriverSQLite     Driver = "sqlite"
	DriverPostgres   Driver = "postgres"
)

// Drivers lists every supported backend.
func Drivers() []Driver {
	return []Driver{DriverFilesystem, DriverS3, DriverMemory, DriverSQLite, DriverPostgres}
}

// PutOptions carries optional attributes stored alongside a payload.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored payload without its bytes.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store persists whole payloads by key. A Put replaces the previous value
// atomically from the reader's point of view. Get and Head wrap ErrNotFound
// for absent keys; Delete reports absence as (false, nil). List orders by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
	Close() error
}

// ErrNotFound marks a key that was never written or has been deleted.
var ErrNotFound = errors.New("store: key not found")
