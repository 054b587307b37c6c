package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/hbgk/gkpulse/pkg/export"
	"github.com/hbgk/gkpulse/pkg/ingest"
	"github.com/hbgk/gkpulse/pkg/utils"
	"go.uber.org/zap"
)

// DefaultListURL is the notice list of the provincial exam office.
const DefaultListURL = "https://rst.hubei.gov.cn/hbrsksw/zlplks/jglyks/hbsgwyks/zytz/"

// reportMarker identifies daily applicant report links.
const reportMarker = "报名人数统计表"

var (
	// ErrNoReport means the list page carries no dated report link.
	ErrNoReport = errors.New("no applicant report link found")
	// ErrNoAttachment means a report page links no workbook.
	ErrNoAttachment = errors.New("report page has no xlsx attachment")
)

// Outcome summarizes what a crawl did.
type Outcome string

const (
	OutcomeIngested  Outcome = "ingested"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSealed    Outcome = "sealed"
)

// Fetcher downloads a URL.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Report is a dated link found on the list page.
type Report struct {
	Title string `json:"title"`
	Date  string `json:"date"`
	URL   string `json:"url"`
}

// Result describes one crawl.
type Result struct {
	Report   Report              `json:"report"`
	FileURL  string              `json:"file_url"`
	Path     string              `json:"path"`
	Hash     string              `json:"hash"`
	Outcome  Outcome             `json:"outcome"`
	Daily    *ingest.DailyResult `json:"daily,omitempty"`
	Export   *export.Report      `json:"export,omitempty"`
	Started  time.Time           `json:"started"`
	Duration time.Duration       `json:"duration"`
}

// Crawler finds the newest daily report, downloads its workbook and ingests it.
type Crawler struct {
	ListURL   string
	DailyDir  string
	ExportDir string

	Fetcher  Fetcher
	Dates    ingest.DateSource
	Pipeline *ingest.Pipeline
	// Exporter is optional; nil skips the static export after an ingest.
	Exporter *export.Exporter
	Logger   *zap.Logger

	mu sync.Mutex
}

// Run performs one crawl. Concurrent calls are serialized.
func (c *Crawler) Run(ctx context.Context) (res Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res.Started = time.Now().UTC()
	defer func() { res.Duration = time.Since(res.Started) }()

	report, err := c.FindLatest(ctx)
	if err != nil {
		return res, err
	}
	res.Report = report

	sealed, latest, err := ingest.Sealed(ctx, c.Dates, report.Date)
	if err != nil {
		return res, err
	}
	if sealed {
		res.Outcome = OutcomeSealed
		c.Logger.Info("Newest report is a sealed day, skipping",
			zap.String("date", report.Date),
			zap.String("latest", latest))
		return res, nil
	}

	fileURL, err := c.ResolveFile(ctx, report.URL)
	if err != nil {
		return res, err
	}
	res.FileURL = fileURL

	body, err := c.Fetcher.Get(ctx, fileURL)
	if err != nil {
		return res, fmt.Errorf("download %s: %w", fileURL, err)
	}
	res.Hash = utils.ContentHash(body)
	res.Path = filepath.Join(c.DailyDir, report.Date+".xlsx")

	stored, err := c.isStored(ctx, report.Date)
	if err != nil {
		return res, err
	}
	if stored && sameContent(res.Path, res.Hash) {
		res.Outcome = OutcomeUnchanged
		c.Logger.Info("Report unchanged since last crawl",
			zap.String("date", report.Date),
			zap.String("hash", res.Hash))
		return res, nil
	}

	if err := saveFile(res.Path, body); err != nil {
		return res, err
	}
	daily, err := c.Pipeline.IngestDailyFile(ctx, report.Date, res.Path)
	if err != nil {
		return res, err
	}
	res.Daily = &daily
	res.Outcome = OutcomeIngested

	if c.Exporter != nil && c.ExportDir != "" {
		rep, err := c.Exporter.Export(ctx, c.ExportDir)
		if err != nil {
			return res, fmt.Errorf("export: %w", err)
		}
		res.Export = &rep
	}

	c.Logger.Info("Daily report crawled",
		zap.String("date", report.Date),
		zap.String("file", fileURL),
		zap.Int("count", daily.Count))
	return res, nil
}

// FindLatest scans the list page for report links and returns the newest dated one.
func (c *Crawler) FindLatest(ctx context.Context) (Report, error) {
	page, err := c.Fetcher.Get(ctx, c.ListURL)
	if err != nil {
		return Report{}, fmt.Errorf("fetch list page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return Report{}, fmt.Errorf("parse list page: %w", err)
	}

	var best Report
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Text())
		if !strings.Contains(title, reportMarker) {
			return
		}
		date, ok := ExtractDate(title)
		if !ok {
			return
		}
		href, _ := s.Attr("href")
		abs, err := resolve(c.ListURL, href)
		if err != nil {
			c.Logger.Debug("Skipping unresolvable link", zap.String("href", href), zap.Error(err))
			return
		}
		if date > best.Date {
			best = Report{Title: title, Date: date, URL: abs}
		}
	})
	if best.Date == "" {
		return Report{}, ErrNoReport
	}
	return best, nil
}

// ResolveFile returns the workbook URL for a report link. HTML notice pages are followed
// to their first .xlsx attachment; any other link is taken to be the workbook itself.
func (c *Crawler) ResolveFile(ctx context.Context, link string) (string, error) {
	if !isHTMLPage(link) {
		return link, nil
	}
	page, err := c.Fetcher.Get(ctx, link)
	if err != nil {
		return "", fmt.Errorf("fetch report page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse report page: %w", err)
	}
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h, _ := s.Attr("href")
		if strings.HasSuffix(strings.ToLower(strings.TrimSpace(h)), ".xlsx") {
			href = strings.TrimSpace(h)
			return false
		}
		return true
	})
	if href == "" {
		return "", fmt.Errorf("%w: %s", ErrNoAttachment, link)
	}
	return resolve(link, href)
}

func (c *Crawler) isStored(ctx context.Context, date string) (bool, error) {
	dates, err := c.Dates.Dates(ctx)
	if err != nil {
		return false, fmt.Errorf("stored dates: %w", err)
	}
	return utils.Contains(dates, date), nil
}

var titleDateRe = regexp.MustCompile(`(\d{4})\.(\d{1,2})\.(\d{1,2})`)

// ExtractDate finds a Y.M.D date in a link title and returns it as YYYY-MM-DD.
func ExtractDate(title string) (string, bool) {
	m := titleDateRe.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	date := fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
	if !models.ValidDate(date) {
		return "", false
	}
	return date, true
}

func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}

func isHTMLPage(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	return strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".htm")
}

func sameContent(path, hash string) bool {
	b, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return utils.ContentHash(b) == hash
}

func saveFile(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create daily dir: %w", err)
	}
	tmp := path + ".part"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}
