package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/hbgk/gkpulse/pkg/analytics"
	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/hbgk/gkpulse/pkg/db/sqlite"
	"github.com/hbgk/gkpulse/pkg/sheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func seededExporter(t *testing.T) *Exporter {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := sqlite.OpenMemory(t, logger)
	ctx := context.Background()

	_, err := store.UpsertPositions(ctx, []models.Position{
		{Code: "1001", Name: "综合管理", City: "武汉市", District: "江汉区", Quota: 2},
		{Code: "1002", Name: "执法岗", City: "武汉市", District: "洪山区", Quota: 1},
		{Code: "1003", Name: "科员", City: "宜昌市", District: "夷陵区", Quota: 1},
		{Code: "1004", Name: "审判辅助", City: "省直", District: "其他", Quota: 0},
	})
	require.NoError(t, err)
	_, err = store.UpsertApplications(ctx, "2026-10-16", []models.Application{
		{Code: "1001", Applicants: 15}, {Code: "1002", Applicants: 8}, {Code: "1003", Applicants: 151},
	})
	require.NoError(t, err)
	_, err = store.UpsertApplications(ctx, "2026-10-17", []models.Application{
		{Code: "1001", Applicants: 80}, {Code: "1002", Applicants: 20}, {Code: "1003", Applicants: 151}, {Code: "1004", Applicants: 3},
	})
	require.NoError(t, err)

	return New(analytics.NewEngine(store, logger), logger, 2)
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestExportWritesEveryFile(t *testing.T) {
	x := seededExporter(t)
	dir := filepath.Join(t.TempDir(), "export")

	report, err := x.Export(context.Background(), dir)
	require.NoError(t, err)

	want := []string{
		"filters.json", "map_data.json", "positions.json",
		"positions.xlsx", "positions_2026-10-16.json", "positions_2026-10-17.json",
		"summary.json", "surge.json", "trend.json",
		"trend_宜昌市.json", "trend_武汉市.json", "trend_省直.json",
		"trends_granular.json",
	}
	assert.ElementsMatch(t, want, report.Files)
	for _, name := range want {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(want), "no temporary files are left behind")
}

func TestExportContents(t *testing.T) {
	x := seededExporter(t)
	dir := t.TempDir()
	_, err := x.Export(context.Background(), dir)
	require.NoError(t, err)

	var granular Granular
	readJSON(t, filepath.Join(dir, "trends_granular.json"), &granular)
	assert.Equal(t, []string{"2026-10-16", "2026-10-17"}, granular.Dates)
	assert.Equal(t, []int64{8, 20}, granular.Trends["1002"])
	assert.Equal(t, []int64{0, 3}, granular.Trends["1004"])
	assert.Len(t, granular.Trends, 4)

	var older models.PositionPage
	readJSON(t, filepath.Join(dir, "positions_2026-10-16.json"), &older)
	assert.Equal(t, "2026-10-16", older.Date)
	assert.Equal(t, int64(4), older.Total)

	var surge analytics.SurgeReport
	readJSON(t, filepath.Join(dir, "surge.json"), &surge)
	require.NotNil(t, surge.PrevDate)
	assert.Equal(t, "2026-10-16", *surge.PrevDate)
	require.NotEmpty(t, surge.Data)
	assert.Equal(t, "1001", surge.Data[0].Code)

	table, err := sheet.ReadFile(filepath.Join(dir, WorkbookName))
	require.NoError(t, err)
	assert.Equal(t, workbookHeader, table.Header)
	require.Len(t, table.Rows, 4)
	assert.Equal(t, "1003", table.Rows[0][0])
}

func TestExportEmptyStore(t *testing.T) {
	logger := zaptest.NewLogger(t)
	x := New(analytics.NewEngine(sqlite.OpenMemory(t, logger), logger), logger, 0)
	dir := t.TempDir()

	report, err := x.Export(context.Background(), dir)
	require.NoError(t, err)
	assert.Contains(t, report.Files, "summary.json")
	assert.NotContains(t, report.Files, "trend_武汉市.json")

	var summary analytics.Summary
	readJSON(t, filepath.Join(dir, "summary.json"), &summary)
	assert.False(t, summary.HasPositions)
	assert.Nil(t, summary.Date)
}
