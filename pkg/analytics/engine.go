// Package analytics derives latest values, trends and day-over-day deltas from the
// stored snapshots. It holds no state of its own.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/hbgk/gkpulse/pkg/db"
	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/hbgk/gkpulse/pkg/geo"
	"github.com/hbgk/gkpulse/pkg/utils"
	"go.uber.org/zap"
)

const (
	SurgeLimit        = 30
	SurgeCapitalLimit = 20
	DefaultListLimit  = 10
)

// Engine answers read queries over a snapshot store.
type Engine struct {
	Store  db.SnapshotReader
	Logger *zap.Logger
}

func NewEngine(store db.SnapshotReader, logger *zap.Logger) *Engine {
	return &Engine{Store: store, Logger: logger}
}

// ResolveDate returns date, or the latest stored date when date is empty. ok is false
// when the store has no snapshots and no date was asked for.
func (e *Engine) ResolveDate(ctx context.Context, date string) (string, bool, error) {
	if date != "" {
		return date, true, nil
	}
	return e.Store.LatestDate(ctx)
}

// Dates lists the stored snapshot dates, oldest first.
func (e *Engine) Dates(ctx context.Context) ([]string, error) {
	return e.Store.Dates(ctx)
}

// Positions returns one filtered page at the query date.
func (e *Engine) Positions(ctx context.Context, q models.PositionQuery) (models.PositionPage, error) {
	return e.Store.PositionsWithStats(ctx, q)
}

// Hot returns the limit most applied-to positions at date.
func (e *Engine) Hot(ctx context.Context, limit int, date string) (models.PositionPage, error) {
	return e.ranked(ctx, limit, date, models.SortHot)
}

// Cold returns the limit least applied-to positions at date; larger quotas first on ties.
func (e *Engine) Cold(ctx context.Context, limit int, date string) (models.PositionPage, error) {
	return e.ranked(ctx, limit, date, models.SortCold)
}

func (e *Engine) ranked(ctx context.Context, limit int, date string, order models.SortOrder) (models.PositionPage, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return e.Store.PositionsWithStats(ctx, models.PositionQuery{Date: date, Limit: limit, Sort: order})
}

// ByCodes looks up a watch list at the latest date. Unknown codes are reported in
// NotFound in request order.
func (e *Engine) ByCodes(ctx context.Context, codes []string) (ByCodesResult, error) {
	codes = normalizeCodes(codes)
	latest, _, err := e.Store.LatestDate(ctx)
	if err != nil {
		return ByCodesResult{}, err
	}
	data, err := e.Store.PositionsByCodes(ctx, codes, latest)
	if err != nil {
		return ByCodesResult{}, err
	}
	found := make(map[string]bool, len(data))
	for _, p := range data {
		found[p.Code] = true
	}
	notFound := []string{}
	for _, c := range codes {
		if !found[c] {
			notFound = append(notFound, c)
		}
	}
	return ByCodesResult{Data: data, Total: len(data), NotFound: notFound, LatestDate: nullable(latest)}, nil
}

// Trend returns one point per stored date for the scope. Dates where the scope has no
// snapshot read as zero.
func (e *Engine) Trend(ctx context.Context, scope models.TrendScope) ([]TrendPoint, error) {
	dates, err := e.Store.Dates(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := e.Store.DailyTotals(ctx, scope)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]models.DailyTotal, len(totals))
	for _, t := range totals {
		byDate[t.Date] = t
	}
	out := make([]TrendPoint, 0, len(dates))
	for _, d := range dates {
		t := byDate[d]
		out = append(out, TrendPoint{Date: d, Applicants: t.Applicants, Passed: t.Passed})
	}
	return out, nil
}

// MultiTrend aligns the applicants of codes on the union of their snapshot dates. Series
// are ordered by their last value, highest first, then by code.
func (e *Engine) MultiTrend(ctx context.Context, codes []string) (MultiTrend, error) {
	codes = normalizeCodes(codes)
	out := MultiTrend{Positions: []CodeSeries{}, Dates: []string{}}
	if len(codes) == 0 {
		return out, nil
	}

	snaps, err := e.Store.Snapshots(ctx, codes)
	if err != nil {
		return out, err
	}
	positions, err := e.Store.PositionsByCodes(ctx, codes, "")
	if err != nil {
		return out, err
	}
	names := make(map[string]string, len(positions))
	for _, p := range positions {
		names[p.Code] = p.Name
	}

	cells := make(map[string]map[string]int64, len(codes))
	seen := map[string]bool{}
	for _, s := range snaps {
		if cells[s.Code] == nil {
			cells[s.Code] = map[string]int64{}
		}
		cells[s.Code][s.Date] = s.Applicants
		if !seen[s.Date] {
			seen[s.Date] = true
			out.Dates = append(out.Dates, s.Date)
		}
	}
	sort.Strings(out.Dates)

	for _, c := range codes {
		series := CodeSeries{Code: c, Name: names[c], Data: make([]int64, len(out.Dates))}
		if series.Name == "" {
			series.Name = c
		}
		for i, d := range out.Dates {
			series.Data[i] = cells[c][d]
		}
		out.Positions = append(out.Positions, series)
	}
	sort.SliceStable(out.Positions, func(i, j int) bool {
		a, b := last(out.Positions[i].Data), last(out.Positions[j].Data)
		if a != b {
			return a > b
		}
		return out.Positions[i].Code < out.Positions[j].Code
	})
	return out, nil
}

// lastTwo returns the latest and previous stored dates; missing ones are "".
func (e *Engine) lastTwo(ctx context.Context) (string, string, error) {
	dates, err := e.Store.Dates(ctx)
	if err != nil {
		return "", "", err
	}
	switch n := len(dates); {
	case n == 0:
		return "", "", nil
	case n == 1:
		return dates[0], "", nil
	default:
		return dates[n-1], dates[n-2], nil
	}
}

// deltas pairs every position's applicants at latest with its value at prev.
func (e *Engine) deltas(ctx context.Context, latest, prev string) ([]models.PositionStats, map[string]int64, error) {
	page, err := e.Store.PositionsWithStats(ctx, models.PositionQuery{Date: latest})
	if err != nil {
		return nil, nil, fmt.Errorf("positions at %s: %w", latest, err)
	}
	before, err := e.Store.ApplicantsAt(ctx, prev)
	if err != nil {
		return nil, nil, fmt.Errorf("applicants at %s: %w", prev, err)
	}
	return page.Data, before, nil
}

// Surge ranks positive day-over-day increases between the two latest dates. With fewer
// than two dates both lists are empty and PrevDate is null.
func (e *Engine) Surge(ctx context.Context) (SurgeReport, error) {
	latest, prev, err := e.lastTwo(ctx)
	if err != nil {
		return SurgeReport{}, err
	}
	report := SurgeReport{Data: []SurgeItem{}, Wuhan: []SurgeItem{}, Date: nullable(latest), PrevDate: nullable(prev)}
	if prev == "" {
		return report, nil
	}

	positions, before, err := e.deltas(ctx, latest, prev)
	if err != nil {
		return SurgeReport{}, err
	}
	var all []SurgeItem
	for _, p := range positions {
		delta := p.Applicants - before[p.Code]
		if delta <= 0 {
			continue
		}
		all = append(all, SurgeItem{
			Code: p.Code, Name: p.Name, Unit: p.Unit, City: p.City, District: p.District, Quota: p.Quota,
			ApplicantsToday: p.Applicants, ApplicantsPrev: before[p.Code], Delta: delta,
		})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Delta != all[j].Delta {
			return all[i].Delta > all[j].Delta
		}
		return all[i].Code < all[j].Code
	})

	for _, s := range all {
		if len(report.Data) < SurgeLimit {
			report.Data = append(report.Data, s)
		}
		if s.City == geo.Capital && len(report.Wuhan) < SurgeCapitalLimit {
			report.Wuhan = append(report.Wuhan, s)
		}
	}
	e.Logger.Debug("Surge computed",
		zap.String("date", latest),
		zap.String("prev_date", prev),
		zap.Int("rising", len(all)))
	return report, nil
}

// Regions is the per-city rollup at date.
func (e *Engine) Regions(ctx context.Context, date string) (RegionReport, error) {
	date, _, err := e.ResolveDate(ctx, date)
	if err != nil {
		return RegionReport{}, err
	}
	cities, err := e.Store.RegionalStats(ctx, date)
	if err != nil {
		return RegionReport{}, err
	}
	return RegionReport{Cities: cities, Districts: []models.RegionStat{}, Date: nullable(date)}, nil
}

// Districts is the per-district rollup of city at date plus the city totals.
func (e *Engine) Districts(ctx context.Context, city, date string) (DistrictReport, error) {
	date, _, err := e.ResolveDate(ctx, date)
	if err != nil {
		return DistrictReport{}, err
	}
	rows, err := e.Store.DistrictStats(ctx, city, date)
	if err != nil {
		return DistrictReport{}, err
	}
	report := DistrictReport{Data: rows, Date: nullable(date)}
	for _, r := range rows {
		report.Positions += r.Positions
		report.Quota += r.Quota
		report.Applicants += r.Applicants
		report.Passed += r.Passed
	}
	return report, nil
}

// Summary gathers totals, dates and the filter lists shown on the dashboard.
func (e *Engine) Summary(ctx context.Context, date string) (Summary, error) {
	date, _, err := e.ResolveDate(ctx, date)
	if err != nil {
		return Summary{}, err
	}
	totals, err := e.Store.Totals(ctx, date)
	if err != nil {
		return Summary{}, err
	}
	dates, err := e.Store.Dates(ctx)
	if err != nil {
		return Summary{}, err
	}
	opts, err := e.Store.FilterOptions(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		HasPositions:   totals.Positions > 0,
		Totals:         totals,
		Dates:          dates,
		Cities:         opts.Cities,
		EducationTypes: opts.Education,
		Date:           nullable(date),
	}, nil
}

// MapData returns the per-city and capital-district rollups keyed by map names.
func (e *Engine) MapData(ctx context.Context, date string) (MapData, error) {
	date, _, err := e.ResolveDate(ctx, date)
	if err != nil {
		return MapData{}, err
	}
	cities, err := e.Store.RegionalStats(ctx, date)
	if err != nil {
		return MapData{}, err
	}
	districts, err := e.Store.DistrictStats(ctx, geo.Capital, date)
	if err != nil {
		return MapData{}, err
	}
	out := MapData{Province: make([]MapRegion, 0, len(cities)), Wuhan: make([]MapRegion, 0, len(districts)), Date: nullable(date)}
	for _, c := range cities {
		name, _ := geo.MapName(c.Name)
		out.Province = append(out.Province, MapRegion{RegionStat: c, MapName: name})
	}
	for _, d := range districts {
		out.Wuhan = append(out.Wuhan, MapRegion{RegionStat: d, MapName: d.Name})
	}
	return out, nil
}

// Filters lists the distinct filter values.
func (e *Engine) Filters(ctx context.Context) (models.FilterOptions, error) {
	return e.Store.FilterOptions(ctx)
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range utils.Dedup(codes) {
		out = append(out, models.NormalizeCode(c))
	}
	return utils.Dedup(out)
}

func last(s []int64) int64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}
