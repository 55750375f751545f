package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options configures the database connection
type Options struct {
	Driver       string
	DSN          string
	Debug        bool
	DebugWriter  io.Writer
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
}

// Database wraps the bun handle together with the settings needed to run
// migrations against it.
type Database struct {
	*bun.DB
	driver string
	dsn    string
}

// Open connects to the configured database and verifies the connection
func Open(ctx context.Context, opts Options) (*Database, error) {
	driver := NormalizeDriver(opts.Driver)

	var db *bun.DB
	switch driver {
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, sqliteDSN(opts.DSN))
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite database")
		}
		// SQLite serializes writers, and an in memory database only exists
		// on the connection that created it.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())

		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to enable sqlite foreign keys")
		}
	case DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(opts.DSN)))
		if opts.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			sqldb.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLife > 0 {
			sqldb.SetConnMaxLifetime(opts.ConnMaxLife)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, errors.New(fmt.Sprintf("unsupported database driver %q", opts.Driver), errors.CategoryBadInput)
	}

	if opts.Debug {
		w := opts.DebugWriter
		if w == nil {
			w = os.Stderr
		}
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.WithWriter(w),
		))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CategoryExternal, "database is unreachable")
	}

	return &Database{DB: db, driver: driver, dsn: opts.DSN}, nil
}

// Driver returns the normalized driver name
func (d *Database) Driver() string {
	return d.driver
}

// NormalizeDriver maps driver aliases to the supported names
func NormalizeDriver(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3", "sqliteshim":
		return DriverSQLite
	case "postgres", "postgresql", "pg", "pgx":
		return DriverPostgres
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

func sqliteDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return ":memory:"
	}
	return strings.TrimPrefix(dsn, "sqlite://")
}
