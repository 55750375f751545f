package repository

import (
	"context"
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/goliatone/go-errors"

	_ "github.com/lib/pq"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// Migrate applies every pending up migration for the database dialect.
func (d *Database) Migrate(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.CategoryOperation, "context cancelled before migrations")
	default:
	}

	src, err := iofs.New(migrationFiles, "migrations/"+d.driver)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to load embedded migrations")
	}

	var (
		drv   database.Driver
		owned *sql.DB
	)

	switch d.driver {
	case DriverSQLite:
		// the sqlite driver runs on our own handle; closing it would close
		// the application database, so the migrator is never closed.
		drv, err = sqlite3.WithInstance(d.DB.DB, &sqlite3.Config{})
	case DriverPostgres:
		// postgres pins a dedicated connection and closes its *sql.DB on
		// Close, so it gets one of its own.
		owned, err = sql.Open("postgres", d.dsn)
		if err == nil {
			drv, err = postgres.WithInstance(owned, &postgres.Config{})
		}
	default:
		return errors.New("unsupported database driver "+d.driver, errors.CategoryBadInput)
	}
	if err != nil {
		if owned != nil {
			_ = owned.Close()
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to start migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, d.driver, drv)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create migrator")
	}
	if owned != nil {
		defer m.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, errors.CategoryInternal, "could not run up migrations")
	}

	return nil
}
