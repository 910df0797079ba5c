// Package blob re-exports the key/value store abstractions and selects a
// backend at startup. Packages outside internal/infra depend on blob.Store
// and never on a concrete backend.
package blob

import (
	"fieldmonitor/internal/blob/core"
)

type (
	// Driver identifies a store backend driver.
	Driver = core.Driver
	// PutOptions configures a write.
	PutOptions = core.PutOptions
	// Info describes stored payload metadata.
	Info = core.Info
	// Store is the interface for durable key/value backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory driver.
	DriverMemory = core.DriverMemory
	// DriverSQLite is the SQLite state-table driver.
	DriverSQLite = core.DriverSQLite
	// DriverPostgres is the Postgres state-table driver.
	DriverPostgres = core.DriverPostgres
)

// ErrNotFound indicates a key has no stored value.
var ErrNotFound = core.ErrNotFound

// Drivers lists the backends Open accepts.
func Drivers() []Driver { return core.Drivers() }
