// Package ingest runs spreadsheet batches through the schema mapper, the geo classifier and
// the snapshot store, one batch at a time.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hbgk/gkpulse/pkg/db"
	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/hbgk/gkpulse/pkg/db/sqlq"
	"github.com/hbgk/gkpulse/pkg/geo"
	"github.com/hbgk/gkpulse/pkg/schema"
	"github.com/hbgk/gkpulse/pkg/sheet"
	"github.com/hbgk/gkpulse/pkg/utils"
	"go.uber.org/zap"
)

var (
	ErrSealedDate  = errors.New("date already stored and a later snapshot exists")
	ErrInvalidDate = errors.New("report date must be YYYY-MM-DD")
)

// Store is the part of db.Store the pipeline writes through.
type Store interface {
	db.PositionWriter
	db.ApplicationWriter
	DateSource
}

// DateSource lists the snapshot dates already stored.
type DateSource interface {
	LatestDate(ctx context.Context) (string, bool, error)
	Dates(ctx context.Context) ([]string, error)
}

// Sealed reports whether date is stored and a later date exists. Such a day is never
// rewritten; a missing earlier day can still be backfilled. latest is the newest stored date.
func Sealed(ctx context.Context, src DateSource, date string) (sealed bool, latest string, err error) {
	latest, ok, err := src.LatestDate(ctx)
	if err != nil {
		return false, "", fmt.Errorf("latest date: %w", err)
	}
	if !ok || date >= latest {
		return false, latest, nil
	}
	dates, err := src.Dates(ctx)
	if err != nil {
		return false, latest, fmt.Errorf("stored dates: %w", err)
	}
	return utils.Contains(dates, date), latest, nil
}

// PositionResult reports a committed positions batch.
type PositionResult struct {
	Count          int      `json:"count"`
	Dropped        int      `json:"dropped"`
	Cities         []string `json:"cities"`
	SyntheticCodes bool     `json:"synthetic_codes"`
	Warnings       []string `json:"warnings"`
}

// DailyResult reports a committed daily batch.
type DailyResult struct {
	Date       string   `json:"date"`
	Count      int      `json:"count"`
	Applicants int64    `json:"total_applicants"`
	Warnings   []string `json:"warnings"`
}

// Pipeline serializes ingestion against one store.
type Pipeline struct {
	Store      Store
	Classifier *geo.Classifier
	// Notifier is told about every committed batch; nil disables notifications.
	Notifier Notifier
	Logger   *zap.Logger

	mu sync.Mutex
}

func New(store Store, notifier Notifier, logger *zap.Logger) *Pipeline {
	return &Pipeline{Store: store, Classifier: geo.New(), Notifier: notifier, Logger: logger}
}

// IngestPositions maps, classifies and upserts a positions table.
func (p *Pipeline) IngestPositions(ctx context.Context, t *sheet.Table) (PositionResult, error) {
	batch, err := schema.MapPositions(t)
	if err != nil {
		return PositionResult{}, fmt.Errorf("map positions: %w", err)
	}

	positions := make([]models.Position, 0, len(batch.Records))
	for _, r := range batch.Records {
		pos := r.Position
		loc := p.Classifier.Classify(pos.Org, r.CityHint, r.DistrictHint)
		pos.City, pos.District = loc.City, loc.District
		positions = append(positions, pos)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := p.Store.UpsertPositions(ctx, positions)
	if err != nil {
		return PositionResult{}, fmt.Errorf("store positions: %w", err)
	}

	res := PositionResult{
		Count:          n,
		Dropped:        len(positions) - n,
		Cities:         citySet(models.NormalizePositions(positions)),
		SyntheticCodes: batch.SyntheticCodes,
		Warnings:       nonNil(batch.Warnings),
	}
	if res.Dropped > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d rows without a usable code dropped", res.Dropped))
	}
	if batch.SyntheticCodes {
		p.Logger.Warn("Positions stored with row-numbered codes", zap.Int("count", n))
	}
	p.Logger.Info("Positions ingested",
		zap.Int("count", n),
		zap.Int("dropped", res.Dropped),
		zap.Strings("cities", res.Cities))

	p.notify(ctx, Event{Kind: KindPositions, Records: n})
	return res, nil
}

// IngestDaily maps and upserts a daily report for date. A stored date with a later one
// after it is refused with ErrSealedDate. Re-ingesting the latest date replaces it, and a
// missing earlier date is backfilled.
func (p *Pipeline) IngestDaily(ctx context.Context, date string, t *sheet.Table) (DailyResult, error) {
	if !models.ValidDate(date) {
		return DailyResult{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	batch, err := schema.MapDaily(t)
	if err != nil {
		return DailyResult{}, fmt.Errorf("map daily %s: %w", date, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	sealed, latest, err := Sealed(ctx, p.Store, date)
	if err != nil {
		return DailyResult{}, err
	}
	if sealed {
		return DailyResult{}, fmt.Errorf("%w: %s < %s", ErrSealedDate, date, latest)
	}

	n, err := p.Store.UpsertApplications(ctx, date, batch.Rows)
	if err != nil {
		return DailyResult{}, fmt.Errorf("store daily %s: %w", date, err)
	}

	res := DailyResult{Date: date, Count: n, Warnings: nonNil(batch.Warnings)}
	for _, a := range models.NormalizeApplications(date, batch.Rows) {
		res.Applicants += a.Applicants
	}
	if n == 0 {
		res.Warnings = append(res.Warnings, "no rows with a usable position code")
	}
	p.Logger.Info("Daily applications ingested",
		zap.String("date", date),
		zap.Int("count", n),
		zap.Int64("applicants", res.Applicants))

	p.notify(ctx, Event{Kind: KindDaily, Date: date, Records: n})
	return res, nil
}

// IngestPositionsFile reads path and ingests it as a positions table.
func (p *Pipeline) IngestPositionsFile(ctx context.Context, path string) (PositionResult, error) {
	t, err := sheet.ReadFile(path)
	if err != nil {
		return PositionResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	return p.IngestPositions(ctx, t)
}

// IngestDailyFile reads path and ingests it as the daily report of date.
func (p *Pipeline) IngestDailyFile(ctx context.Context, date, path string) (DailyResult, error) {
	t, err := sheet.ReadFile(path)
	if err != nil {
		return DailyResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	return p.IngestDaily(ctx, date, t)
}

func (p *Pipeline) notify(ctx context.Context, ev Event) {
	if p.Notifier == nil {
		return
	}
	ev.At = time.Now().UTC()
	if err := p.Notifier.Notify(ctx, ev); err != nil {
		p.Logger.Warn("Ingest notification failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

// citySet lists the distinct cities of positions in display order; 未知 goes last.
func citySet(positions []models.Position) []string {
	seen := map[string]bool{}
	var cities []string
	unknown := false
	for _, pos := range positions {
		if pos.City == geo.Unknown {
			unknown = true
			continue
		}
		if !seen[pos.City] {
			seen[pos.City] = true
			cities = append(cities, pos.City)
		}
	}
	out := sqlq.OrderCities(cities)
	if unknown {
		out = append(out, geo.Unknown)
	}
	return out
}

func nonNil(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
