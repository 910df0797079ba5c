// Package postgres provides the Postgres-backed key/value store. Each
// persistence key is one row of the `state` table.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"fieldmonitor/internal/blob/core"
	"fieldmonitor/internal/infra/persistence/sqlstate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/fieldmonitor?sslmode=disable"
)

// Store is a core.Store persisted in Postgres.
type Store struct {
	*sqlstate.Table
}

var _ core.Store = (*Store)(nil)

// Open connects using dsn (falls back to defaultDSN), applies migrations and
// returns the store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Table: sqlstate.New(db, core.DriverPostgres, sqlstate.DollarBind)}, nil
}

// RunMigrations applies the embedded schema on a dedicated connection.
func RunMigrations(dsn string) error {
	migrateDB, err := sql.Open(defaultDriver, dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer func() { _ = migrateDB.Close() }()

	driver, err := migratepgx.WithInstance(migrateDB, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("create pgx driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
