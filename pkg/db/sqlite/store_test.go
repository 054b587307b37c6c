package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func seedPositions() []models.Position {
	return []models.Position{
		{Code: "1001", Name: "综合管理", Org: "武汉市江汉区人社局", Quota: 2, City: "武汉市", District: "江汉区", Education: "本科及以上", Degree: "学士", Target: "不限", Notes: "需值夜班"},
		{Code: "1002", Name: "法官助理", Org: "省高级人民法院", Quota: 0, City: "省直", District: "其他", Education: "研究生", MajorPG: "法学"},
		{Code: "1003", Name: "执法岗", Org: "宜昌市夷陵区市场监管局", Quota: 1, City: "宜昌市", District: "夷陵区", Education: "大专及以上", Target: "应届毕业生"},
		{Code: "1004", Name: "文秘", Org: "武汉市洪山区委办", Quota: 3, City: "武汉市", District: "洪山区", Education: "本科及以上", MajorUG: "汉语言文学"},
	}
}

func newStore(t *testing.T) *DB {
	t.Helper()
	db := OpenMemory(t, zaptest.NewLogger(t))
	_, err := db.UpsertPositions(context.Background(), seedPositions())
	require.NoError(t, err)
	return db
}

func TestEmptyStore(t *testing.T) {
	ctx := context.Background()
	db := OpenMemory(t, zaptest.NewLogger(t))

	_, ok, err := db.LatestDate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	page, err := db.PositionsWithStats(ctx, models.PositionQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Zero(t, page.Total)
	assert.Equal(t, "", page.Date)

	totals, err := db.Totals(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, models.Totals{}, totals)

	dates, err := db.Dates(ctx)
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestUpsertPositionsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)

	changed := seedPositions()
	changed[0].Name = "综合管理（调整）"
	changed[0].Quota = 5
	n, err := db.UpsertPositions(ctx, append(changed, models.Position{Code: "nan"}, models.Position{Code: " "}))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	page, err := db.PositionsWithStats(ctx, models.PositionQuery{Keyword: "综合管理"})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, "综合管理（调整）", page.Data[0].Name)
	assert.Equal(t, int64(5), page.Data[0].Quota)

	all, err := db.PositionsWithStats(ctx, models.PositionQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)
}

func TestUpsertApplicationsIdempotentPerDate(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)

	_, err := db.UpsertApplications(ctx, "2026-10-16", []models.Application{{Code: "1001", Applicants: 5}})
	require.NoError(t, err)
	_, err = db.UpsertApplications(ctx, "2026-10-17", []models.Application{{Code: "1001", Applicants: 8, Passed: 1}})
	require.NoError(t, err)
	n, err := db.UpsertApplications(ctx, "2026-10-17", []models.Application{
		{Code: "1001.0", Applicants: 9, Passed: 2},
		{Code: "合计", Applicants: 999},
		{Code: "nan", Applicants: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snaps, err := db.Snapshots(ctx, []string{"1001"})
	require.NoError(t, err)
	assert.Equal(t, []models.Application{
		{Code: "1001", Date: "2026-10-16", Applicants: 5},
		{Code: "1001", Date: "2026-10-17", Applicants: 9, Passed: 2},
	}, snaps)

	latest, ok, err := db.LatestDate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2026-10-17", latest)

	dates, err := db.Dates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-16", "2026-10-17"}, dates)
}

func TestPositionsWithStatsFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	_, err := db.UpsertApplications(ctx, "2026-10-17", []models.Application{
		{Code: "1001", Applicants: 30, Passed: 10},
		{Code: "1002", Applicants: 5},
		{Code: "1004", Applicants: 30},
		{Code: "9999", Applicants: 77},
	})
	require.NoError(t, err)

	page, err := db.PositionsWithStats(ctx, models.PositionQuery{})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-17", page.Date)
	require.Len(t, page.Data, 4)
	assert.Equal(t, []string{"1001", "1004", "1002", "1003"}, codes(page.Data))
	assert.Equal(t, 15.0, page.Data[0].CompetitionRatio)
	assert.Equal(t, int64(10), page.Data[0].Passed)
	assert.Equal(t, 5.0, page.Data[2].CompetitionRatio, "quota 0 divides by one")
	assert.Equal(t, int64(0), page.Data[3].Applicants)

	wuhan, err := db.PositionsWithStats(ctx, models.PositionQuery{City: "武汉", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), wuhan.Total)
	assert.Equal(t, []string{"1001"}, codes(wuhan.Data))

	second, err := db.PositionsWithStats(ctx, models.PositionQuery{City: "武汉", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"1004"}, codes(second.Data))

	district, err := db.PositionsWithStats(ctx, models.PositionQuery{District: "洪山"})
	require.NoError(t, err)
	assert.Zero(t, district.Total, "district is an exact match")

	edu, err := db.PositionsWithStats(ctx, models.PositionQuery{Education: "本科"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), edu.Total)

	target, err := db.PositionsWithStats(ctx, models.PositionQuery{Target: "应届毕业生"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1003"}, codes(target.Data))

	kw, err := db.PositionsWithStats(ctx, models.PositionQuery{Keyword: "夜班"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1001"}, codes(kw.Data))

	major, err := db.PositionsWithStats(ctx, models.PositionQuery{Keyword: "法学"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1002"}, codes(major.Data))

	cold, err := db.PositionsWithStats(ctx, models.PositionQuery{Sort: models.SortCold, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"1003", "1002"}, codes(cold.Data))

	older, err := db.PositionsWithStats(ctx, models.PositionQuery{Date: "2026-10-01"})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-01", older.Date)
	for _, s := range older.Data {
		assert.Zero(t, s.Applicants)
	}
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	_, err := db.UpsertApplications(ctx, "2026-10-17", []models.Application{
		{Code: "1001", Applicants: 30, Passed: 10},
		{Code: "1003", Applicants: 4, Passed: 1},
		{Code: "1004", Applicants: 6},
		{Code: "9999", Applicants: 77},
	})
	require.NoError(t, err)

	regions, err := db.RegionalStats(ctx, "")
	require.NoError(t, err)
	require.Len(t, regions, 3)
	assert.Equal(t, models.RegionStat{Name: "武汉市", Positions: 2, Quota: 5, Applicants: 36, Passed: 10, CompetitionRatio: 7.2}, regions[0])
	assert.Equal(t, "宜昌市", regions[1].Name)
	assert.Equal(t, "省直", regions[2].Name)

	districts, err := db.DistrictStats(ctx, "武汉市", "2026-10-17")
	require.NoError(t, err)
	require.Len(t, districts, 2)
	assert.Equal(t, "江汉区", districts[0].Name)
	assert.Equal(t, int64(30), districts[0].Applicants)

	totals, err := db.Totals(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, models.Totals{Positions: 4, Quota: 6, Applicants: 40, Passed: 11}, totals)

	at, err := db.ApplicantsAt(ctx, "2026-10-17")
	require.NoError(t, err)
	assert.Equal(t, int64(77), at["9999"])
	assert.Len(t, at, 4)

	byCodes, err := db.PositionsByCodes(ctx, []string{"1003", "1001", "nope"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1001", "1003"}, codes(byCodes))
}

func TestDailyTotalsScopes(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	_, err := db.UpsertApplications(ctx, "2026-10-16", []models.Application{{Code: "1001", Applicants: 3}, {Code: "1003", Applicants: 1}})
	require.NoError(t, err)
	_, err = db.UpsertApplications(ctx, "2026-10-17", []models.Application{
		{Code: "1001", Applicants: 7, Passed: 2},
		{Code: "1004", Applicants: 4},
		{Code: "9999", Applicants: 500, Passed: 50},
	})
	require.NoError(t, err)

	// snapshots without a position are left out, as in Totals
	all, err := db.DailyTotals(ctx, models.TrendScope{})
	require.NoError(t, err)
	assert.Equal(t, []models.DailyTotal{
		{Date: "2026-10-16", Applicants: 4},
		{Date: "2026-10-17", Applicants: 11, Passed: 2},
	}, all)
	totals, err := db.Totals(ctx, "2026-10-17")
	require.NoError(t, err)
	assert.Equal(t, all[1].Applicants, totals.Applicants)
	assert.Equal(t, all[1].Passed, totals.Passed)

	city, err := db.DailyTotals(ctx, models.TrendScope{City: "宜昌市"})
	require.NoError(t, err)
	assert.Equal(t, []models.DailyTotal{{Date: "2026-10-16", Applicants: 1}}, city)

	code, err := db.DailyTotals(ctx, models.TrendScope{Code: "1004"})
	require.NoError(t, err)
	assert.Equal(t, []models.DailyTotal{{Date: "2026-10-17", Applicants: 4}}, code)
}

func TestCodeSetsBeyondBindLimit(t *testing.T) {
	ctx := context.Background()
	db := OpenMemory(t, zaptest.NewLogger(t))

	positions := make([]models.Position, 1200)
	for i := range positions {
		positions[i] = models.Position{Code: fmt.Sprintf("P%05d", i), City: "武汉市", Quota: 1}
	}
	_, err := db.UpsertPositions(ctx, positions)
	require.NoError(t, err)
	// spread across chunks so the merged order matters
	_, err = db.UpsertApplications(ctx, "2026-10-17", []models.Application{
		{Code: "P01150", Applicants: 9},
		{Code: "P00003", Applicants: 9},
		{Code: "P00700", Applicants: 40},
	})
	require.NoError(t, err)
	_, err = db.UpsertApplications(ctx, "2026-10-16", []models.Application{{Code: "P01199", Applicants: 1}})
	require.NoError(t, err)

	// more codes than SQLite accepts as bind variables in one statement
	requested := make([]string, 40000)
	for i := range requested {
		requested[i] = fmt.Sprintf("P%05d", i)
	}

	stats, err := db.PositionsByCodes(ctx, requested, "2026-10-17")
	require.NoError(t, err)
	require.Len(t, stats, 1200)
	assert.Equal(t, []string{"P00700", "P00003", "P01150", "P00000"}, codes(stats[:4]))

	snaps, err := db.Snapshots(ctx, requested)
	require.NoError(t, err)
	assert.Equal(t, []models.Application{
		{Code: "P01199", Date: "2026-10-16", Applicants: 1},
		{Code: "P00003", Date: "2026-10-17", Applicants: 9},
		{Code: "P00700", Date: "2026-10-17", Applicants: 40},
		{Code: "P01150", Date: "2026-10-17", Applicants: 9},
	}, snaps)
}

func TestFilterOptions(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	_, err := db.UpsertPositions(ctx, []models.Position{{Code: "2001", City: "未知", District: "其他"}})
	require.NoError(t, err)

	opts, err := db.FilterOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"省直", "武汉市", "宜昌市"}, opts.Cities)
	assert.Equal(t, []string{"江汉区", "洪山区"}, opts.Districts["武汉市"])
	assert.ElementsMatch(t, []string{"本科及以上", "研究生", "大专及以上"}, opts.Education)
	assert.Equal(t, []string{"学士"}, opts.Degree)
	assert.ElementsMatch(t, []string{"不限", "应届毕业生"}, opts.Target)
}

func codes(stats []models.PositionStats) []string {
	out := make([]string, len(stats))
	for i, s := range stats {
		out[i] = s.Code
	}
	return out
}
