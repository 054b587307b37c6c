package controller

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/hbgk/gkpulse/app/query/types"
	"github.com/hbgk/gkpulse/pkg/analytics"
	"github.com/hbgk/gkpulse/pkg/db/sqlite"
	"github.com/hbgk/gkpulse/pkg/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const positionsCSV = `招录机关,招录职位,职位代码,招录人数,学历
省人大常委会办公厅,文字综合,1001,1,研究生
武汉市江汉区人社局,综合管理,1002,2,本科及以上
武汉市洪山区城管局,执法岗,1003,1,大专及以上
`

const dailyCSV = `职位代码,报名人数,审核通过人数
1001,5,1
1002,30,2
1003,12,0
`

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := sqlite.OpenMemory(t, logger)
	app := &types.App{
		Store:          store,
		Engine:         analytics.NewEngine(store, logger),
		Cache:          types.NewResponseCache(0),
		MaxUploadBytes: 1 << 20,
		Logger:         logger,
	}
	app.Pipeline = ingest.New(store, ingest.NotifierFunc(app.PurgeOnIngest), logger)

	router, err := NewController(app).NewRouter()
	require.NoError(t, err)
	return WithCORS(router)
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	return do(h, httptest.NewRequest(http.MethodGet, target, nil))
}

func postJSON(h http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(h, req)
}

func upload(t *testing.T, h http.Handler, target, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return do(h, req)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func seed(t *testing.T, h http.Handler, dates ...string) {
	t.Helper()
	rec := upload(t, h, "/upload/positions", "positions.csv", positionsCSV, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, d := range dates {
		rec = upload(t, h, "/upload/daily", "daily.csv", dailyCSV, map[string]string{"report_date": d})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	rec := get(h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "sqlite", body["backend"])
}

func TestUploadPositions(t *testing.T) {
	h := newTestServer(t)
	rec := upload(t, h, "/upload/positions", "positions.csv", positionsCSV, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res ingest.PositionResult
	decode(t, rec, &res)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, []string{"省直", "武汉市"}, res.Cities)
}

func TestUploadRejections(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "2026-10-16", "2026-10-17")

	cases := []struct {
		name     string
		target   string
		filename string
		content  string
		fields   map[string]string
	}{
		{"sealed date", "/upload/daily", "daily.csv", dailyCSV, map[string]string{"report_date": "2026-10-16"}},
		{"malformed date", "/upload/daily", "daily.csv", dailyCSV, map[string]string{"report_date": "17/10/2026"}},
		{"no code column", "/upload/daily", "daily.csv", "序号,报名人数\n1,5\n", map[string]string{"report_date": "2026-10-18"}},
		{"unsupported format", "/upload/positions", "positions.pdf", positionsCSV, nil},
		{"missing file", "/upload/positions", "", "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := upload(t, h, tc.target, tc.filename, tc.content, tc.fields)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	// the latest date can be replaced and a missing earlier day backfilled
	rec := upload(t, h, "/upload/daily", "daily.csv", dailyCSV, map[string]string{"report_date": "2026-10-17"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = upload(t, h, "/upload/daily", "daily.csv", dailyCSV, map[string]string{"report_date": "2026-10-15"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestPositionListings(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "2026-10-16")

	rec := get(h, "/positions?city="+url.QueryEscape("武汉市"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page listingResponse
	decode(t, rec, &page)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "1002", page.Data[0].Code)
	assert.Equal(t, 15.0, page.Data[0].CompetitionRatio)
	require.NotNil(t, page.Date)
	assert.Equal(t, "2026-10-16", *page.Date)

	rec = get(h, "/positions/wuhan?district="+url.QueryEscape("洪山区"))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "1003", page.Data[0].Code)

	rec = get(h, "/positions?page=2&page_size=2")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 2, page.Page)
}

func TestStatsEndpoints(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "2026-10-16")

	rec := get(h, "/stats/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary analytics.Summary
	decode(t, rec, &summary)
	assert.True(t, summary.HasPositions)
	assert.Equal(t, int64(47), summary.Applicants)
	assert.Equal(t, []string{"2026-10-16"}, summary.Dates)

	rec = get(h, "/stats/hot-positions?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var hot rankedResponse
	decode(t, rec, &hot)
	require.Len(t, hot.Data, 1)
	assert.Equal(t, "1002", hot.Data[0].Code)

	rec = get(h, "/stats/surge")
	require.Equal(t, http.StatusOK, rec.Code)
	var surge analytics.SurgeReport
	decode(t, rec, &surge)
	assert.Empty(t, surge.Data)
	assert.Nil(t, surge.PrevDate)

	for _, target := range []string{
		"/stats/dates", "/stats/by-region", "/stats/wuhan-districts", "/stats/trend",
		"/stats/trend?position_code=1002", "/stats/cold-positions", "/stats/momentum", "/filters",
	} {
		assert.Equal(t, http.StatusOK, get(h, target).Code, target)
	}
}

func TestBadParameters(t *testing.T) {
	h := newTestServer(t)
	for _, target := range []string{
		"/positions?page=0",
		"/positions?page_size=abc",
		"/stats/hot-positions?limit=-1",
		"/stats/summary?date=yesterday",
	} {
		assert.Equal(t, http.StatusBadRequest, get(h, target).Code, target)
	}
}

func TestCachePurgedOnIngest(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "2026-10-16")

	first := get(h, "/stats/summary")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get(h, "/stats/summary")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	rec := upload(t, h, "/upload/daily", "daily.csv", dailyCSV, map[string]string{"report_date": "2026-10-17"})
	require.Equal(t, http.StatusOK, rec.Code)

	third := get(h, "/stats/summary")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	var summary analytics.Summary
	decode(t, third, &summary)
	require.NotNil(t, summary.Date)
	assert.Equal(t, "2026-10-17", *summary.Date)
}

func TestCacheSkipsResponseComputedAcrossIngest(t *testing.T) {
	logger := zaptest.NewLogger(t)
	app := &types.App{Cache: types.NewResponseCache(0), Logger: logger}
	c := NewController(app)

	serve := func(target string, compute func(ctx context.Context) (any, error)) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		c.serveCached(rec, httptest.NewRequest(http.MethodGet, target, nil), compute)
		return rec
	}

	// an ingest commits while the stale answer is still being computed
	stale := serve("/stats/summary", func(context.Context) (any, error) {
		app.PurgeCache()
		return map[string]string{"date": "2026-10-16"}, nil
	})
	assert.Equal(t, "MISS", stale.Header().Get("X-Cache"))
	assert.Equal(t, 0, app.Cache.Size())

	fresh := serve("/stats/summary", func(context.Context) (any, error) {
		return map[string]string{"date": "2026-10-17"}, nil
	})
	assert.Equal(t, "MISS", fresh.Header().Get("X-Cache"))

	hit := serve("/stats/summary", func(context.Context) (any, error) {
		t.Fatal("cached response should be served")
		return nil, nil
	})
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"date":"2026-10-17"}`, hit.Body.String())
}

func TestCacheKeyIgnoresParamOrder(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "2026-10-16")

	first := get(h, "/positions?city=%E6%AD%A6%E6%B1%89%E5%B8%82&page=1")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get(h, "/positions?page=1&city=%E6%AD%A6%E6%B1%89%E5%B8%82")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestByCodes(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "2026-10-16", "2026-10-17")

	rec := postJSON(h, "/positions/by-codes", `["1002", "9999", "1002.0"]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res analytics.ByCodesResult
	decode(t, rec, &res)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, []string{"9999"}, res.NotFound)
	require.NotNil(t, res.LatestDate)
	assert.Equal(t, "2026-10-17", *res.LatestDate)

	rec = postJSON(h, "/positions/trend-by-codes", `["1001", "1002"]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var trend analytics.MultiTrend
	decode(t, rec, &trend)
	assert.Equal(t, []string{"2026-10-16", "2026-10-17"}, trend.Dates)
	require.Len(t, trend.Positions, 2)
	assert.Equal(t, "1002", trend.Positions[0].Code)
	assert.Equal(t, []int64{30, 30}, trend.Positions[0].Data)

	rec = postJSON(h, "/positions/by-codes", `{"codes": ["1002"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/positions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := do(h, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
