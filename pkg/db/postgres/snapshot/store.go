package snapshot

import (
	"context"
	"fmt"
	"slices"

	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/hbgk/gkpulse/pkg/db/sqlq"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var dialect = sqlq.Postgres

// UpsertPositions replaces or inserts positions by code in one transaction.
func (db *DB) UpsertPositions(ctx context.Context, positions []models.Position) (int, error) {
	rows := models.NormalizePositions(positions)
	if len(rows) == 0 {
		return 0, nil
	}
	query := sqlq.UpsertPosition(dialect)
	batch := &pgx.Batch{}
	for _, p := range rows {
		batch.Queue(query, p.Values()...)
	}
	err := db.inTx(ctx, func(ctx context.Context) error {
		return db.executeBatch(ctx, db.GetExecutor(ctx), batch)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert positions: %w", err)
	}
	db.Logger.Debug("Positions upserted", zap.Int("count", len(rows)), zap.Int("dropped", len(positions)-len(rows)))
	return len(rows), nil
}

// UpsertApplications replaces or inserts the snapshots of date in one transaction.
func (db *DB) UpsertApplications(ctx context.Context, date string, apps []models.Application) (int, error) {
	rows := models.NormalizeApplications(date, apps)
	if len(rows) == 0 {
		return 0, nil
	}
	query := sqlq.UpsertApplication(dialect)
	batch := &pgx.Batch{}
	for _, a := range rows {
		batch.Queue(query, a.Code, a.Date, a.Applicants, a.Passed)
	}
	err := db.inTx(ctx, func(ctx context.Context) error {
		return db.executeBatch(ctx, db.GetExecutor(ctx), batch)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert applications %s: %w", date, err)
	}
	db.Logger.Debug("Applications upserted",
		zap.String("date", date),
		zap.Int("count", len(rows)),
		zap.Int("dropped", len(apps)-len(rows)))
	return len(rows), nil
}

// LatestDate returns the most recent snapshot date.
func (db *DB) LatestDate(ctx context.Context) (string, bool, error) {
	var date *string
	if err := db.GetExecutor(ctx).QueryRow(ctx, `SELECT MAX(date) FROM applications`).Scan(&date); err != nil {
		return "", false, fmt.Errorf("latest date: %w", err)
	}
	if date == nil || *date == "" {
		return "", false, nil
	}
	return *date, true, nil
}

// Dates lists the distinct snapshot dates in ascending order.
func (db *DB) Dates(ctx context.Context) ([]string, error) {
	return db.strings(ctx, `SELECT DISTINCT date FROM applications ORDER BY date`)
}

func (db *DB) resolveDate(ctx context.Context, date string) (string, error) {
	if date != "" {
		return date, nil
	}
	latest, _, err := db.LatestDate(ctx)
	return latest, err
}

// PositionsWithStats lists positions joined with their snapshot at the query date.
func (db *DB) PositionsWithStats(ctx context.Context, q models.PositionQuery) (models.PositionPage, error) {
	date, err := db.resolveDate(ctx, q.Date)
	if err != nil {
		return models.PositionPage{}, err
	}
	list, args, count, countArgs := sqlq.Listing(dialect, q, date)

	page := models.PositionPage{Date: date}
	if err := db.GetExecutor(ctx).QueryRow(ctx, count, countArgs...).Scan(&page.Total); err != nil {
		return models.PositionPage{}, fmt.Errorf("count positions: %w", err)
	}
	page.Data, err = db.queryStats(ctx, list, args...)
	if err != nil {
		return models.PositionPage{}, err
	}
	return page, nil
}

// PositionsByCodes returns the stats of the given codes at date; unknown codes are absent.
func (db *DB) PositionsByCodes(ctx context.Context, codes []string, date string) ([]models.PositionStats, error) {
	if len(codes) == 0 {
		return []models.PositionStats{}, nil
	}
	date, err := db.resolveDate(ctx, date)
	if err != nil {
		return nil, err
	}
	out := []models.PositionStats{}
	for part := range slices.Chunk(codes, sqlq.MaxBindCodes) {
		q, args := sqlq.ByCodes(dialect, part, date)
		stats, err := db.queryStats(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, stats...)
	}
	if len(codes) > sqlq.MaxBindCodes {
		sqlq.SortHot(out)
	}
	return out, nil
}

func (db *DB) queryStats(ctx context.Context, query string, args ...any) ([]models.PositionStats, error) {
	rows, err := db.GetExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	out := []models.PositionStats{}
	for rows.Next() {
		var s models.PositionStats
		targets := append(s.ScanTargets(), &s.Applicants, &s.Passed)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, s.WithRatio())
	}
	return out, rows.Err()
}

// RegionalStats aggregates per city at date.
func (db *DB) RegionalStats(ctx context.Context, date string) ([]models.RegionStat, error) {
	return db.groupStats(ctx, "", date)
}

// DistrictStats aggregates per district of city at date.
func (db *DB) DistrictStats(ctx context.Context, city, date string) ([]models.RegionStat, error) {
	if city == "" {
		return []models.RegionStat{}, nil
	}
	return db.groupStats(ctx, city, date)
}

func (db *DB) groupStats(ctx context.Context, city, date string) ([]models.RegionStat, error) {
	date, err := db.resolveDate(ctx, date)
	if err != nil {
		return nil, err
	}
	q, args := sqlq.GroupStats(dialect, city, date)
	rows, err := db.GetExecutor(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("group stats: %w", err)
	}
	defer rows.Close()

	out := []models.RegionStat{}
	for rows.Next() {
		var r models.RegionStat
		if err := rows.Scan(&r.Name, &r.Positions, &r.Quota, &r.Applicants, &r.Passed); err != nil {
			return nil, fmt.Errorf("scan group stats: %w", err)
		}
		r.CompetitionRatio = models.CompetitionRatio(r.Applicants, r.Quota)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Totals aggregates every position at date.
func (db *DB) Totals(ctx context.Context, date string) (models.Totals, error) {
	date, err := db.resolveDate(ctx, date)
	if err != nil {
		return models.Totals{}, err
	}
	q, args := sqlq.Totals(dialect, date)
	var t models.Totals
	if err := db.GetExecutor(ctx).QueryRow(ctx, q, args...).Scan(&t.Positions, &t.Quota, &t.Applicants, &t.Passed); err != nil {
		return models.Totals{}, fmt.Errorf("totals: %w", err)
	}
	return t, nil
}

// FilterOptions lists the distinct filter values present in positions.
func (db *DB) FilterOptions(ctx context.Context) (models.FilterOptions, error) {
	var opts models.FilterOptions
	cities, err := db.strings(ctx, `SELECT DISTINCT city FROM positions WHERE city <> '' ORDER BY city`)
	if err != nil {
		return opts, err
	}
	opts.Cities = sqlq.OrderCities(cities)
	if opts.Education, err = db.strings(ctx, `SELECT DISTINCT education FROM positions WHERE education <> '' ORDER BY education`); err != nil {
		return opts, err
	}
	if opts.Degree, err = db.strings(ctx, `SELECT DISTINCT degree FROM positions WHERE degree <> '' ORDER BY degree`); err != nil {
		return opts, err
	}
	if opts.Target, err = db.strings(ctx, `SELECT DISTINCT target FROM positions WHERE target <> '' ORDER BY target`); err != nil {
		return opts, err
	}

	rows, err := db.GetExecutor(ctx).Query(ctx, `SELECT DISTINCT city, district FROM positions WHERE city <> '' AND district <> ''`)
	if err != nil {
		return opts, fmt.Errorf("districts: %w", err)
	}
	defer rows.Close()
	byCity := map[string][]string{}
	for rows.Next() {
		var city, district string
		if err := rows.Scan(&city, &district); err != nil {
			return opts, fmt.Errorf("scan district: %w", err)
		}
		byCity[city] = append(byCity[city], district)
	}
	if err := rows.Err(); err != nil {
		return opts, err
	}
	opts.Districts = make(map[string][]string, len(byCity))
	for city, ds := range byCity {
		opts.Districts[city] = sqlq.OrderDistricts(city, ds)
	}
	return opts, nil
}

// DailyTotals returns per-date sums for the scope, only for dates with snapshots.
func (db *DB) DailyTotals(ctx context.Context, scope models.TrendScope) ([]models.DailyTotal, error) {
	q, args := sqlq.DailyTotals(dialect, scope)
	rows, err := db.GetExecutor(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	out := []models.DailyTotal{}
	for rows.Next() {
		var d models.DailyTotal
		if err := rows.Scan(&d.Date, &d.Applicants, &d.Passed); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Snapshots returns every snapshot of codes ordered by date then code.
func (db *DB) Snapshots(ctx context.Context, codes []string) ([]models.Application, error) {
	if len(codes) == 0 {
		return []models.Application{}, nil
	}
	out := []models.Application{}
	for part := range slices.Chunk(codes, sqlq.MaxBindCodes) {
		var err error
		if out, err = db.appendSnapshots(ctx, out, part); err != nil {
			return nil, err
		}
	}
	if len(codes) > sqlq.MaxBindCodes {
		sqlq.SortSnapshots(out)
	}
	return out, nil
}

func (db *DB) appendSnapshots(ctx context.Context, out []models.Application, codes []string) ([]models.Application, error) {
	q, args := sqlq.Snapshots(dialect, codes)
	rows, err := db.GetExecutor(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Application
		if err := rows.Scan(&a.Code, &a.Date, &a.Applicants, &a.Passed); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ApplicantsAt maps code to applicants for every snapshot of date.
func (db *DB) ApplicantsAt(ctx context.Context, date string) (map[string]int64, error) {
	date, err := db.resolveDate(ctx, date)
	if err != nil {
		return nil, err
	}
	out := map[string]int64{}
	if date == "" {
		return out, nil
	}
	rows, err := db.GetExecutor(ctx).Query(ctx, `SELECT code, applicants FROM applications WHERE date = $1`, date)
	if err != nil {
		return nil, fmt.Errorf("applicants at %s: %w", date, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			code string
			n    int64
		)
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("scan applicants: %w", err)
		}
		out[code] = n
	}
	return out, rows.Err()
}

func (db *DB) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.GetExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
