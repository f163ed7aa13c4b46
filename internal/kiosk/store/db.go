// Package store owns the local SQLite database: opening it, applying the
// embedded goose migrations, and wrapping every statement in the retry
// policy so repositories survive a dropped or broken connection handle.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/migrations"
	"github.com/jcastellanos/comedor-kiosk/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// DB is a retrying database handle. It satisfies dbx.DBTX, so repositories
// use it exactly like a *sql.DB. Each call probes the underlying handle,
// reopens it if the probe fails, and retries with exponential backoff.
type DB struct {
	dsn string
	log logging.Logger

	mu sync.Mutex
	db *sql.DB
}

// Open opens (or creates) the database at dsn and applies migrations.
// The open and migrate steps run under the same retry policy as
// statements; an error here means the storage is genuinely unusable.
func Open(ctx context.Context, dsn string, log logging.Logger) (*DB, error) {
	d := &DB{dsn: dsn, log: log}

	err := withBackoff(ctx, func(ctx context.Context) error {
		db, err := d.acquire(ctx)
		if err != nil {
			return err
		}
		return runMigrations(ctx, db)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dsn, err)
	}
	return d, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// acquire returns a live *sql.DB, opening a fresh handle when there is
// none or when the liveness probe fails on the existing one.
func (d *DB) acquire(ctx context.Context) (*sql.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		if _, err := d.db.ExecContext(ctx, "SELECT 1"); err == nil {
			return d.db, nil
		}
		d.log.Warn(ctx, "database connection lost, reopening", "dsn", d.dsn)
		_ = d.db.Close()
		d.db = nil
	}

	db, err := sql.Open("sqlite", d.dsn)
	if err != nil {
		return nil, err
	}
	d.db = db
	return db, nil
}

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// Unwrap exposes the raw handle for code that needs a real *sql.DB
// (transactions via dbx.WithTx). The returned handle is live at the time
// of the call.
func (d *DB) Unwrap(ctx context.Context) (*sql.DB, error) {
	return d.acquire(ctx)
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := withBackoff(ctx, func(ctx context.Context) error {
		db, err := d.acquire(ctx)
		if err != nil {
			return err
		}
		res, err = db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := withBackoff(ctx, func(ctx context.Context) error {
		db, err := d.acquire(ctx)
		if err != nil {
			return err
		}
		rows, err = db.QueryContext(ctx, query, args...)
		return err
	})
	return rows, err
}
