package controller

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hbgk/gkpulse/pkg/ingest"
	"github.com/hbgk/gkpulse/pkg/sheet"
	"go.uber.org/zap"
)

// multipart parts beyond this are spooled to disk
const maxUploadMemory = 8 << 20

// readUpload parses the multipart "file" field into a table.
func (c *Controller) readUpload(w http.ResponseWriter, r *http.Request) (*sheet.Table, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, c.App.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", &parseError{msg: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)}
		}
		return nil, "", errMissingFile
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errMissingFile
	}
	defer func() { _ = file.Close() }()

	format, err := sheet.DetectFormat(header.Filename)
	if err != nil {
		return nil, header.Filename, err
	}
	t, err := sheet.Read(file, format)
	if err != nil {
		return nil, header.Filename, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	return t, header.Filename, nil
}

// HandleUploadPositions replaces or inserts the positions of an uploaded spreadsheet.
// Multipart field: file (.xlsx or .csv).
func (c *Controller) HandleUploadPositions(w http.ResponseWriter, r *http.Request) {
	t, name, err := c.readUpload(w, r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	res, err := c.App.Pipeline.IngestPositions(r.Context(), t)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.App.Logger.Info("Positions uploaded",
		zap.String("file", name),
		zap.Int("count", res.Count),
		zap.Int("warnings", len(res.Warnings)))
	writeJSON(w, http.StatusOK, res)
}

// HandleUploadDaily stores an uploaded daily report as the snapshot of report_date.
// Multipart field: file; form or query field: report_date (YYYY-MM-DD, default today).
func (c *Controller) HandleUploadDaily(w http.ResponseWriter, r *http.Request) {
	t, name, err := c.readUpload(w, r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	date := r.FormValue("report_date")
	if date == "" {
		date = time.Now().Format(time.DateOnly)
	}
	res, err := c.App.Pipeline.IngestDaily(r.Context(), date, t)
	if err != nil {
		if errors.Is(err, ingest.ErrSealedDate) {
			c.App.Logger.Warn("Daily upload rejected",
				zap.String("file", name),
				zap.String("date", date),
				zap.Error(err))
		}
		c.fail(w, r, err)
		return
	}
	c.App.Logger.Info("Daily report uploaded",
		zap.String("file", name),
		zap.String("date", res.Date),
		zap.Int("count", res.Count))
	writeJSON(w, http.StatusOK, res)
}
