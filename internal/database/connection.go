// Package database implements the embedded document store behind the dream
// journal: revisioned JSON documents, expression indexes, and incrementally
// maintained map/reduce views, all inside one SQLite file.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/dreamlog/dreamlog/db/migrations"
	"github.com/dreamlog/dreamlog/internal/config"
	sqldb "github.com/dreamlog/dreamlog/internal/database/sqlc"

	// Import SQLite driver for database/sql
	_ "modernc.org/sqlite"
)

const lockRetryDelay = 50 * time.Millisecond

// Context holds the database connection and query interface.
type Context struct {
	DB      *sql.DB
	Queries *sqldb.Queries

	lock *flock.Flock
}

// CreateDatabase opens the store at dbPath, applying migrations. An empty path
// uses the configured data directory; ":memory:" opens a private in-memory store.
func CreateDatabase(dbPath string) (*Context, error) {
	path := dbPath
	if path == "" {
		path = config.GetDBPath()
	}

	useMemory := path == ":memory:"

	var dsn string
	var fileLock *flock.Flock
	if useMemory {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		dsn = fmt.Sprintf(
			"file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate",
			filepath.ToSlash(absPath),
		)
		fileLock = flock.New(config.GetLockPath(absPath))
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if useMemory {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dbCtx := &Context{
		DB:      db,
		Queries: sqldb.New(db),
		lock:    fileLock,
	}

	if err := dbCtx.Exclusive(context.Background(), func() error {
		return runMigrations(db)
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return dbCtx, nil
}

// Exclusive runs fn while holding the cross-process initialisation lock. In
// memory stores have no lock and run fn directly.
func (c *Context) Exclusive(ctx context.Context, fn func() error) error {
	if c == nil || c.lock == nil {
		return fn()
	}

	locked, err := c.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire store lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire store lock: %s", c.lock.Path())
	}
	defer func() {
		_ = c.lock.Unlock()
	}()

	return fn()
}

// CloseDatabase closes the database connection.
func CloseDatabase(ctx *Context) error {
	if ctx == nil || ctx.DB == nil {
		return nil
	}
	return ctx.DB.Close()
}

// ClearDatabase removes all documents and view data.
func ClearDatabase(ctx *Context) error {
	if ctx == nil || ctx.DB == nil {
		return nil
	}

	bg := context.Background()
	return withTx(bg, ctx, func(queries *sqldb.Queries) error {
		if err := queries.DeleteAllViewState(bg); err != nil {
			return fmt.Errorf("failed to delete view_state: %w", err)
		}
		if err := queries.DeleteAllViewRows(bg); err != nil {
			return fmt.Errorf("failed to delete view_rows: %w", err)
		}
		if err := queries.DeleteAllDocuments(bg); err != nil {
			return fmt.Errorf("failed to delete documents: %w", err)
		}
		return nil
	})
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to initialise migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.Files, ".")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	defer func() {
		_ = sourceDriver.Close()
	}()

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
