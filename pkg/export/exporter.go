// Package export renders the dashboard's static JSON files and a spreadsheet of the full
// listing from the snapshot store.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/hbgk/gkpulse/pkg/analytics"
	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/hbgk/gkpulse/pkg/sheet"
	"go.uber.org/zap"
)

const DefaultWorkers = 4

// Granular is the per-code trend file: every code's applicants on the shared date axis.
type Granular struct {
	Dates  []string           `json:"dates"`
	Trends map[string][]int64 `json:"trends"`
}

// Report lists the files written by one export.
type Report struct {
	Dir      string        `json:"dir"`
	Files    []string      `json:"files"`
	Duration time.Duration `json:"duration"`
}

// Exporter writes the static files. Independent files render concurrently on a bounded pool.
type Exporter struct {
	Engine  *analytics.Engine
	Logger  *zap.Logger
	Workers int
}

func New(engine *analytics.Engine, logger *zap.Logger, workers int) *Exporter {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Exporter{Engine: engine, Logger: logger, Workers: workers}
}

type job struct {
	name   string
	render func(ctx context.Context) (any, error)
}

// Export writes every file into dir, creating it when needed. Files are written through a
// temporary name and renamed, so readers never see a partial file.
func (x *Exporter) Export(ctx context.Context, dir string) (Report, error) {
	start := time.Now()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Report{}, fmt.Errorf("create export dir: %w", err)
	}

	summary, err := x.Engine.Summary(ctx, "")
	if err != nil {
		return Report{}, fmt.Errorf("summary: %w", err)
	}

	jobs := x.jobs(summary)

	pool := pond.NewPool(x.Workers, pond.WithQueueSize(len(jobs)+1))
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	var (
		mu    sync.Mutex
		files []string
	)
	record := func(name string) {
		mu.Lock()
		files = append(files, name)
		mu.Unlock()
	}

	for _, j := range jobs {
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			v, err := j.render(groupCtx)
			if err != nil {
				return fmt.Errorf("render %s: %w", j.name, err)
			}
			if err := writeJSON(filepath.Join(dir, j.name), v); err != nil {
				return err
			}
			record(j.name)
			return nil
		})
	}
	group.SubmitErr(func() error {
		if err := x.writeWorkbook(groupCtx, filepath.Join(dir, WorkbookName)); err != nil {
			return err
		}
		record(WorkbookName)
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, pond.ErrGroupStopped) {
		return Report{}, err
	}

	sort.Strings(files)
	report := Report{Dir: dir, Files: files, Duration: time.Since(start)}
	x.Logger.Info("Export written",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (x *Exporter) jobs(summary analytics.Summary) []job {
	e := x.Engine
	jobs := []job{
		{"summary.json", func(context.Context) (any, error) { return summary, nil }},
		{"trend.json", func(ctx context.Context) (any, error) {
			return e.Trend(ctx, models.TrendScope{})
		}},
		{"positions.json", func(ctx context.Context) (any, error) {
			return e.Positions(ctx, models.PositionQuery{})
		}},
		{"filters.json", func(ctx context.Context) (any, error) { return e.Filters(ctx) }},
		{"map_data.json", func(ctx context.Context) (any, error) { return e.MapData(ctx, "") }},
		{"surge.json", func(ctx context.Context) (any, error) { return e.Surge(ctx) }},
		{"trends_granular.json", func(ctx context.Context) (any, error) { return x.granular(ctx) }},
	}
	for _, city := range summary.Cities {
		jobs = append(jobs, job{"trend_" + city + ".json", func(ctx context.Context) (any, error) {
			return e.Trend(ctx, models.TrendScope{City: city})
		}})
	}
	for _, date := range summary.Dates {
		jobs = append(jobs, job{"positions_" + date + ".json", func(ctx context.Context) (any, error) {
			return e.Positions(ctx, models.PositionQuery{Date: date})
		}})
	}
	return jobs
}

// granular builds the dense per-code series for every stored position.
func (x *Exporter) granular(ctx context.Context) (Granular, error) {
	dates, err := x.Engine.Dates(ctx)
	if err != nil {
		return Granular{}, err
	}
	page, err := x.Engine.Positions(ctx, models.PositionQuery{})
	if err != nil {
		return Granular{}, err
	}
	codes := make([]string, 0, len(page.Data))
	for _, p := range page.Data {
		codes = append(codes, p.Code)
	}
	snaps, err := x.Engine.Store.Snapshots(ctx, codes)
	if err != nil {
		return Granular{}, err
	}

	axis := make(map[string]int, len(dates))
	for i, d := range dates {
		axis[d] = i
	}
	out := Granular{Dates: dates, Trends: make(map[string][]int64, len(codes))}
	for _, c := range codes {
		out.Trends[c] = make([]int64, len(dates))
	}
	for _, s := range snaps {
		i, ok := axis[s.Date]
		if !ok {
			continue
		}
		if series, ok := out.Trends[s.Code]; ok {
			series[i] = s.Applicants
		}
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeAtomic(path, func(tmp string) error {
		return os.WriteFile(tmp, data, 0o644)
	})
}

func writeAtomic(path string, write func(tmp string) error) error {
	tmp := path + ".tmp"
	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WorkbookName is the spreadsheet export of the full listing.
const WorkbookName = "positions.xlsx"

var workbookHeader = []string{
	"职位代码", "招录职位", "招录机关", "用人单位", "城市", "区县", "招录人数",
	"学历", "学位", "招录对象", "报名人数", "审核通过人数", "竞争比",
}

func (x *Exporter) writeWorkbook(ctx context.Context, path string) error {
	page, err := x.Engine.Positions(ctx, models.PositionQuery{})
	if err != nil {
		return fmt.Errorf("render %s: %w", WorkbookName, err)
	}
	rows := make([][]any, 0, len(page.Data))
	for _, p := range page.Data {
		rows = append(rows, []any{
			p.Code, p.Name, p.Org, p.Unit, p.City, p.District, p.Quota,
			p.Education, p.Degree, p.Target, p.Applicants, p.Passed, p.CompetitionRatio,
		})
	}
	sheetName := "职位"
	if page.Date != "" {
		sheetName = page.Date
	}
	// excelize picks the format from the extension, so the temporary name keeps .xlsx
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err := sheet.WriteXLSX(tmp, sheetName, workbookHeader, rows); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", WorkbookName, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", WorkbookName, err)
	}
	return nil
}
