package snapshot

import (
	"context"
	"fmt"

	"github.com/hbgk/gkpulse/pkg/db/postgres"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// DB is the PostgreSQL snapshot store.
type DB struct {
	postgres.Client
	Name string
}

// New connects to (creating if needed) the named database and ensures the schema exists.
func New(ctx context.Context, logger *zap.Logger, name string, poolConfig postgres.PoolConfig) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(
		zap.String("db", name),
		zap.String("component", poolConfig.Component),
	), name, &poolConfig)
	if err != nil {
		return nil, err
	}

	snapshotDB := &DB{
		Client: client,
		Name:   name,
	}

	if err := snapshotDB.InitializeDB(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return snapshotDB, nil
}

// InitializeDB ensures the required tables and indexes exist
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing snapshot database", zap.String("database", db.Name))

	initOps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"positions", db.initPositions},
		{"applications", db.initApplications},
	}
	for _, op := range initOps {
		db.Logger.Debug("Initialize table", zap.String("table", op.name), zap.String("database", db.Name))
		if err := op.fn(ctx); err != nil {
			return fmt.Errorf("init %s: %w", op.name, err)
		}
	}
	return nil
}

func (db *DB) initPositions(ctx context.Context) error {
	return db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS positions (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			org TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			quota BIGINT NOT NULL DEFAULT 1,
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
}

func (db *DB) initApplications(ctx context.Context) error {
	return db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS applications (
			code TEXT NOT NULL,
			date TEXT NOT NULL,
			applicants BIGINT NOT NULL DEFAULT 0,
			passed BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (code, date)
		);
		CREATE INDEX IF NOT EXISTS idx_applications_date ON applications (date);
	`)
}

// Backend names the store implementation.
func (db *DB) Backend() string { return "postgres" }

// Ping checks the pool.
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

// Close terminates the underlying PostgreSQL pool
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// inTx runs fn with a transaction embedded in its context.
func (db *DB) inTx(ctx context.Context, fn func(context.Context) error) error {
	return db.BeginFunc(ctx, func(tx pgx.Tx) error {
		return fn(db.WithTx(ctx, tx))
	})
}

func (db *DB) executeBatch(ctx context.Context, exec postgres.Executor, batch *pgx.Batch) error {
	br := exec.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch statement %d failed: %w", i, err)
		}
	}
	return nil
}
