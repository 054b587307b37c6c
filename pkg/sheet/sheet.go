package sheet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	ErrEmptyTable        = errors.New("spreadsheet has no header row")
)

// Table is a raw tabular batch: one header row and the data rows below it. Rows are padded
// to the header width so callers can index by column.
type Table struct {
	Header []string
	Rows   [][]string
}

// NewTable splits raw records into header and rows. Leading blank records are skipped.
func NewTable(records [][]string) (*Table, error) {
	for len(records) > 0 && blank(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmptyTable
	}
	t := &Table{Header: trimAll(records[0])}
	for _, r := range records[1:] {
		if blank(r) {
			continue
		}
		t.Rows = append(t.Rows, r)
	}
	t.pad()
	return t, nil
}

// PromoteFirstRow makes the first data row the header. Used when a sheet starts with a
// descriptive title line.
func (t *Table) PromoteFirstRow() error {
	if len(t.Rows) == 0 {
		return ErrEmptyTable
	}
	t.Header = trimAll(t.Rows[0])
	t.Rows = t.Rows[1:]
	t.pad()
	return nil
}

// Cell returns the trimmed value at row i, column col, or "" when out of range.
func (t *Table) Cell(i, col int) string {
	if col < 0 || i < 0 || i >= len(t.Rows) || col >= len(t.Rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[i][col])
}

func (t *Table) pad() {
	width := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for len(t.Header) < width {
		t.Header = append(t.Header, "")
	}
	for i, r := range t.Rows {
		for len(r) < width {
			r = append(r, "")
		}
		t.Rows[i] = r
	}
}

// Format identifies a file type by extension.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat maps a file name to a Format.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
}

// ReadFile opens path and parses it according to its extension.
func ReadFile(path string) (*Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Read(f, format)
}

// Read parses r as the given format.
func Read(r io.Reader, format Format) (*Table, error) {
	switch format {
	case FormatXLSX:
		return ReadXLSX(r)
	case FormatCSV:
		return ReadCSV(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimAll(r []string) []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = strings.TrimSpace(strings.ReplaceAll(c, "\n", ""))
	}
	return out
}
