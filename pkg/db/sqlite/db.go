package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// pragmas are applied on every pooled connection through the DSN.
var pragmas = []string{
	"busy_timeout(10000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

// DB is the SQLite snapshot store.
type DB struct {
	Logger *zap.Logger
	Db     *sql.DB
	Path   string
}

// New opens (creating if needed) the database at path and ensures the schema exists.
func New(ctx context.Context, logger *zap.Logger, path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	conn, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
	}

	db := &DB{Logger: logger, Db: conn, Path: path}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if err := db.InitializeDB(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("SQLite store ready", zap.String("path", path))
	return db, nil
}

// OpenMemory opens an in-memory store for tests and closes it on cleanup.
func OpenMemory(t testing.TB, logger *zap.Logger) *DB {
	t.Helper()
	db, err := New(context.Background(), logger, ":memory:")
	if err != nil {
		t.Fatalf("sqlite: open memory: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func dsn(path string) string {
	v := url.Values{}
	for _, p := range pragmas {
		v.Add("_pragma", p)
	}
	if path == ":memory:" {
		return "file::memory:?" + v.Encode()
	}
	return "file:" + path + "?" + v.Encode()
}

// InitializeDB creates the tables and indexes if they do not exist.
func (db *DB) InitializeDB(ctx context.Context) error {
	initOps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"positions", db.initPositions},
		{"applications", db.initApplications},
	}
	for _, op := range initOps {
		db.Logger.Debug("Initializing table", zap.String("table", op.name))
		if err := op.fn(ctx); err != nil {
			return fmt.Errorf("init %s: %w", op.name, err)
		}
	}
	return nil
}

func (db *DB) initPositions(ctx context.Context) error {
	_, err := db.Db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS positions (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			org TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			quota INTEGER NOT NULL DEFAULT 1,
			city TEXT NOT NULL DEFAULT '',
			district TEXT NOT NULL DEFAULT '',
			education TEXT NOT NULL DEFAULT '',
			degree TEXT NOT NULL DEFAULT '',
			major_pg TEXT NOT NULL DEFAULT '',
			major_ug TEXT NOT NULL DEFAULT '',
			target TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			intro TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_positions_city ON positions (city, district);
	`)
	return err
}

func (db *DB) initApplications(ctx context.Context) error {
	_, err := db.Db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS applications (
			code TEXT NOT NULL,
			date TEXT NOT NULL,
			applicants INTEGER NOT NULL DEFAULT 0,
			passed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (code, date)
		);
		CREATE INDEX IF NOT EXISTS idx_applications_date ON applications (date);
	`)
	return err
}

// Backend names the store implementation.
func (db *DB) Backend() string { return "sqlite" }

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error { return db.Db.PingContext(ctx) }

// Close closes the database.
func (db *DB) Close() error { return db.Db.Close() }

// withTx runs fn inside a transaction, rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
