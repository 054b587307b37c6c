package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/hbgk/gkpulse/pkg/db/postgres"
	"github.com/hbgk/gkpulse/pkg/db/postgres/snapshot"
	"github.com/hbgk/gkpulse/pkg/db/sqlite"
	"github.com/hbgk/gkpulse/pkg/utils"
	"go.uber.org/zap"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// compile-time checks
var (
	_ Store = (*sqlite.DB)(nil)
	_ Store = (*snapshot.DB)(nil)
)

// NewStore opens the snapshot store selected by DB_BACKEND. component names the caller
// for pool sizing and logs.
func NewStore(ctx context.Context, logger *zap.Logger, component string) (Store, error) {
	backend := strings.ToLower(utils.Env("DB_BACKEND", BackendSQLite))
	logger.Info("Opening snapshot store", zap.String("backend", backend), zap.String("component", component))

	switch backend {
	case BackendSQLite:
		store, err := sqlite.New(ctx, logger, utils.Env("SQLITE_PATH", "data/gkpulse.db"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendPostgres:
		name := utils.Env("POSTGRES_DB", "gkpulse")
		store, err := snapshot.New(ctx, logger, name, *postgres.GetPoolConfigForComponent(component))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown DB_BACKEND %q", backend)
	}
}
