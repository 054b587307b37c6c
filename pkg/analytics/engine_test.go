package analytics

import (
	"context"
	"testing"

	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/hbgk/gkpulse/pkg/db/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type day struct {
	date string
	apps []models.Application
}

func newEngine(t *testing.T, positions []models.Position, days ...day) *Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := sqlite.OpenMemory(t, logger)
	ctx := context.Background()
	if len(positions) > 0 {
		_, err := store.UpsertPositions(ctx, positions)
		require.NoError(t, err)
	}
	for _, d := range days {
		_, err := store.UpsertApplications(ctx, d.date, d.apps)
		require.NoError(t, err)
	}
	return NewEngine(store, logger)
}

var fixturePositions = []models.Position{
	{Code: "1001", Name: "综合管理", Unit: "江汉区人社局", City: "武汉市", District: "江汉区", Quota: 2, Education: "本科及以上"},
	{Code: "1002", Name: "执法岗", City: "武汉市", District: "洪山区", Quota: 1, Education: "大专及以上"},
	{Code: "1003", Name: "科员", City: "宜昌市", District: "夷陵区", Quota: 1},
	{Code: "1004", Name: "审判辅助", City: "省直", District: "其他", Quota: 0},
}

var fixtureDays = []day{
	{"2026-10-15", []models.Application{{Code: "1001", Applicants: 10}, {Code: "1003", Applicants: 150}}},
	{"2026-10-16", []models.Application{{Code: "1001", Applicants: 15, Passed: 2}, {Code: "1002", Applicants: 8}, {Code: "1003", Applicants: 151}}},
	{"2026-10-17", []models.Application{
		{Code: "1001", Applicants: 80, Passed: 5}, {Code: "1002", Applicants: 20},
		{Code: "1003", Applicants: 151}, {Code: "1004", Applicants: 3},
	}},
}

func fixture(t *testing.T) *Engine {
	return newEngine(t, fixturePositions, fixtureDays...)
}

func codesOf[T any](items []T, code func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, code(it))
	}
	return out
}

func TestTrendIsDense(t *testing.T) {
	e := fixture(t)
	ctx := context.Background()

	global, err := e.Trend(ctx, models.TrendScope{})
	require.NoError(t, err)
	assert.Equal(t, []TrendPoint{
		{Date: "2026-10-15", Applicants: 160},
		{Date: "2026-10-16", Applicants: 174, Passed: 2},
		{Date: "2026-10-17", Applicants: 254, Passed: 5},
	}, global)

	byCode, err := e.Trend(ctx, models.TrendScope{Code: "1002"})
	require.NoError(t, err)
	assert.Equal(t, []TrendPoint{
		{Date: "2026-10-15"},
		{Date: "2026-10-16", Applicants: 8},
		{Date: "2026-10-17", Applicants: 20},
	}, byCode)

	byCity, err := e.Trend(ctx, models.TrendScope{City: "宜昌市"})
	require.NoError(t, err)
	require.Len(t, byCity, 3)
	assert.Equal(t, int64(150), byCity[0].Applicants)
	assert.Equal(t, int64(151), byCity[2].Applicants)
}

func TestMultiTrendUnionAxis(t *testing.T) {
	e := newEngine(t,
		[]models.Position{{Code: "A1", Name: "甲"}, {Code: "B2", Name: "乙"}, {Code: "C3"}},
		day{"2026-10-15", []models.Application{{Code: "A1", Applicants: 4}}},
		day{"2026-10-16", []models.Application{{Code: "A1", Applicants: 9}, {Code: "B2", Applicants: 6}}},
		day{"2026-10-17", []models.Application{{Code: "C3", Applicants: 99}}},
	)

	mt, err := e.MultiTrend(context.Background(), []string{"B2", "A1", "A1.0", " ", "Z9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-15", "2026-10-16"}, mt.Dates)
	assert.Equal(t, []CodeSeries{
		{Code: "A1", Name: "甲", Data: []int64{4, 9}},
		{Code: "B2", Name: "乙", Data: []int64{0, 6}},
		{Code: "Z9", Name: "Z9", Data: []int64{0, 0}},
	}, mt.Positions)
}

func TestMultiTrendEmpty(t *testing.T) {
	e := newEngine(t, nil)
	mt, err := e.MultiTrend(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, mt.Dates)
	assert.NotNil(t, mt.Positions)
}

func TestSurge(t *testing.T) {
	e := fixture(t)
	report, err := e.Surge(context.Background())
	require.NoError(t, err)

	require.NotNil(t, report.Date)
	require.NotNil(t, report.PrevDate)
	assert.Equal(t, "2026-10-17", *report.Date)
	assert.Equal(t, "2026-10-16", *report.PrevDate)

	code := func(s SurgeItem) string { return s.Code }
	assert.Equal(t, []string{"1001", "1002", "1004"}, codesOf(report.Data, code))
	assert.Equal(t, []string{"1001", "1002"}, codesOf(report.Wuhan, code))

	top := report.Data[0]
	assert.Equal(t, int64(80), top.ApplicantsToday)
	assert.Equal(t, int64(15), top.ApplicantsPrev)
	assert.Equal(t, int64(65), top.Delta)
	assert.Equal(t, "江汉区", top.District)
}

func TestSurgeSingleDate(t *testing.T) {
	e := newEngine(t, fixturePositions, fixtureDays[0])
	report, err := e.Surge(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Data)
	assert.Empty(t, report.Wuhan)
	assert.Nil(t, report.PrevDate)
	require.NotNil(t, report.Date)
	assert.Equal(t, "2026-10-15", *report.Date)
}

func TestSurgeCaps(t *testing.T) {
	var positions []models.Position
	var prev, latest []models.Application
	for i := 0; i < 40; i++ {
		code := string(rune('a'+i/26)) + string(rune('a'+i%26))
		positions = append(positions, models.Position{Code: code, City: "武汉市", Quota: 1})
		prev = append(prev, models.Application{Code: code, Applicants: 1})
		latest = append(latest, models.Application{Code: code, Applicants: int64(2 + i)})
	}
	e := newEngine(t, positions, day{"2026-10-16", prev}, day{"2026-10-17", latest})

	report, err := e.Surge(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Data, SurgeLimit)
	assert.Len(t, report.Wuhan, SurgeCapitalLimit)
	assert.Equal(t, int64(40), report.Data[0].Delta)
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name         string
		prev, growth int64
		want         string
	}{
		{"surge wins over accelerating", 10, 50, LabelSurge},
		{"accelerating", 19, 6, LabelAccelerating},
		{"small base but slow", 19, 5, LabelSteady},
		{"cooling", 101, 1, LabelCooling},
		{"large base still growing", 101, 2, LabelSteady},
		{"steady", 50, 10, LabelSteady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Label(tt.prev, tt.growth))
		})
	}
}

func TestMomentum(t *testing.T) {
	e := fixture(t)
	report, err := e.Momentum(context.Background(), 0)
	require.NoError(t, err)

	code := func(m MomentumItem) string { return m.Code }
	assert.Equal(t, []string{"1001", "1002", "1003"}, codesOf(report.Data, code))
	assert.Equal(t, LabelSurge, report.Data[0].Label)
	assert.Equal(t, LabelAccelerating, report.Data[1].Label)
	assert.Equal(t, LabelCooling, report.Data[2].Label)

	assert.Equal(t, MomentumGroup{Count: 1, IDs: []string{"1001"}}, report.Surge)
	assert.Equal(t, MomentumGroup{Count: 2, IDs: []string{"1001", "1002"}}, report.Accelerating)
	assert.Equal(t, MomentumGroup{Count: 1, IDs: []string{"1003"}}, report.Cooling)

	limited, err := e.Momentum(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, limited.Data, 1)
	assert.Equal(t, 2, limited.Accelerating.Count)
}

func TestHotColdAndByCodes(t *testing.T) {
	e := fixture(t)
	ctx := context.Background()
	code := func(p models.PositionStats) string { return p.Code }

	hot, err := e.Hot(ctx, 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1003", "1001"}, codesOf(hot.Data, code))
	assert.Equal(t, "2026-10-17", hot.Date)

	cold, err := e.Cold(ctx, 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1004", "1002"}, codesOf(cold.Data, code))

	res, err := e.ByCodes(ctx, []string{"1003", " 1001 ", "1001", "8888"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1003", "1001"}, codesOf(res.Data, code))
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []string{"8888"}, res.NotFound)
	require.NotNil(t, res.LatestDate)
	assert.Equal(t, "2026-10-17", *res.LatestDate)
	assert.Equal(t, 80.0/2, res.Data[1].CompetitionRatio)
}

func TestRollups(t *testing.T) {
	e := fixture(t)
	ctx := context.Background()

	summary, err := e.Summary(ctx, "")
	require.NoError(t, err)
	assert.True(t, summary.HasPositions)
	assert.Equal(t, models.Totals{Positions: 4, Quota: 4, Applicants: 254, Passed: 5}, summary.Totals)
	assert.Equal(t, []string{"2026-10-15", "2026-10-16", "2026-10-17"}, summary.Dates)
	assert.Equal(t, []string{"省直", "武汉市", "宜昌市"}, summary.Cities)

	districts, err := e.Districts(ctx, "武汉市", "")
	require.NoError(t, err)
	assert.Equal(t, models.Totals{Positions: 2, Quota: 3, Applicants: 100, Passed: 5}, districts.Totals)
	assert.Equal(t, "江汉区", districts.Data[0].Name)

	maps, err := e.MapData(ctx, "2026-10-16")
	require.NoError(t, err)
	require.Len(t, maps.Province, 3)
	assert.Equal(t, "宜昌市", maps.Province[0].MapName)
	assert.Equal(t, int64(151), maps.Province[0].Applicants)
	require.Len(t, maps.Wuhan, 2)
	assert.Equal(t, "江汉区", maps.Wuhan[0].MapName)
	assert.Equal(t, "2026-10-16", *maps.Date)

	regions, err := e.Regions(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "宜昌市", regions.Cities[0].Name)
	assert.NotNil(t, regions.Districts)
}

func TestEmptyStore(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	_, ok, err := e.ResolveDate(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	trend, err := e.Trend(ctx, models.TrendScope{})
	require.NoError(t, err)
	assert.Empty(t, trend)

	surge, err := e.Surge(ctx)
	require.NoError(t, err)
	assert.Nil(t, surge.Date)
	assert.Nil(t, surge.PrevDate)
	assert.Empty(t, surge.Data)

	momentum, err := e.Momentum(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, momentum.Data)

	summary, err := e.Summary(ctx, "")
	require.NoError(t, err)
	assert.False(t, summary.HasPositions)
	assert.Nil(t, summary.Date)

	res, err := e.ByCodes(ctx, []string{"1"})
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.Equal(t, []string{"1"}, res.NotFound)
	assert.Nil(t, res.LatestDate)
}
