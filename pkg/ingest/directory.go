package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/hbgk/gkpulse/pkg/sheet"
	"go.uber.org/zap"
)

// ImportReport summarizes a directory import.
type ImportReport struct {
	Positions *PositionResult `json:"positions,omitempty"`
	Days      []DailyResult   `json:"days"`
	Skipped   []string        `json:"skipped"`
}

type dailyFile struct {
	date string
	path string
}

// ImportDirectory loads positionsFile (when not empty) and then every daily report in
// dailyDir named YYYY-MM-DD.xlsx or YYYY-MM-DD.csv, oldest first. Files with other names
// and sealed dates are skipped.
func (p *Pipeline) ImportDirectory(ctx context.Context, positionsFile, dailyDir string) (ImportReport, error) {
	report := ImportReport{Days: []DailyResult{}, Skipped: []string{}}

	if positionsFile != "" {
		res, err := p.IngestPositionsFile(ctx, positionsFile)
		if err != nil {
			return report, err
		}
		report.Positions = &res
	}
	if dailyDir == "" {
		return report, nil
	}

	files, skipped, err := listDaily(dailyDir)
	if err != nil {
		return report, err
	}
	for _, name := range skipped {
		p.Logger.Warn("Skipping file with unexpected name", zap.String("file", name))
		report.Skipped = append(report.Skipped, name)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := p.IngestDailyFile(ctx, f.date, f.path)
		if errors.Is(err, ErrSealedDate) {
			p.Logger.Warn("Skipping sealed date", zap.String("date", f.date), zap.String("file", f.path))
			report.Skipped = append(report.Skipped, filepath.Base(f.path))
			continue
		}
		if err != nil {
			return report, err
		}
		report.Days = append(report.Days, res)
	}
	return report, nil
}

// listDaily returns the dated report files of dir in date order plus the names it ignored.
// When a date has both an xlsx and a csv file the xlsx wins.
func listDaily(dir string) ([]dailyFile, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	byDate := map[string]dailyFile{}
	var skipped []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		name := e.Name()
		format, err := sheet.DetectFormat(name)
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if err != nil || !models.ValidDate(stem) {
			skipped = append(skipped, name)
			continue
		}
		if prev, ok := byDate[stem]; ok && format != sheet.FormatXLSX {
			skipped = append(skipped, name)
			continue
		} else if ok {
			skipped = append(skipped, filepath.Base(prev.path))
		}
		byDate[stem] = dailyFile{date: stem, path: filepath.Join(dir, name)}
	}

	files := make([]dailyFile, 0, len(byDate))
	for _, f := range byDate {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].date < files[j].date })
	sort.Strings(skipped)
	return files, skipped, nil
}
