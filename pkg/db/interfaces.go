package db

import (
	"context"

	"github.com/hbgk/gkpulse/pkg/db/models"
)

// PositionWriter persists position batches.
type PositionWriter interface {
	// UpsertPositions replaces or inserts every position by code in one transaction and
	// returns the number stored. Empty and "nan" codes are dropped.
	UpsertPositions(ctx context.Context, positions []models.Position) (int, error)
}

// ApplicationWriter persists daily snapshot batches.
type ApplicationWriter interface {
	// UpsertApplications replaces or inserts the (code, date) snapshots in one transaction
	// and returns the number stored. Empty, "nan" and total-row codes are dropped.
	UpsertApplications(ctx context.Context, date string, apps []models.Application) (int, error)
}

// SnapshotReader is the read side consumed by the aggregation engine and the exporter.
// A "" date argument resolves to the latest stored date; with no snapshots at all the
// counts read as zero.
type SnapshotReader interface {
	LatestDate(ctx context.Context) (string, bool, error)
	Dates(ctx context.Context) ([]string, error)
	PositionsWithStats(ctx context.Context, q models.PositionQuery) (models.PositionPage, error)
	PositionsByCodes(ctx context.Context, codes []string, date string) ([]models.PositionStats, error)
	RegionalStats(ctx context.Context, date string) ([]models.RegionStat, error)
	DistrictStats(ctx context.Context, city, date string) ([]models.RegionStat, error)
	Totals(ctx context.Context, date string) (models.Totals, error)
	FilterOptions(ctx context.Context) (models.FilterOptions, error)
	DailyTotals(ctx context.Context, scope models.TrendScope) ([]models.DailyTotal, error)
	Snapshots(ctx context.Context, codes []string) ([]models.Application, error)
	ApplicantsAt(ctx context.Context, date string) (map[string]int64, error)
}

// Store is the snapshot store: positions keyed by code and applications keyed by
// (code, date).
type Store interface {
	PositionWriter
	ApplicationWriter
	SnapshotReader
	Backend() string
	Ping(ctx context.Context) error
	Close() error
}
