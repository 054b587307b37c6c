package models

import (
	"regexp"
	"strings"
	"time"
)

// DateLayout is the report date format used everywhere.
const DateLayout = "2006-01-02"

// TotalRowMarker labels the aggregate line at the bottom of daily reports.
const TotalRowMarker = "合计"

// NormalizeCode trims whitespace and removes the ".0" spreadsheet tools append when a code
// was stored as a float.
func NormalizeCode(raw string) string {
	code := strings.TrimSpace(raw)
	code = strings.TrimSuffix(code, ".0")
	return strings.TrimSpace(code)
}

// ValidPositionCode rejects empty and "nan" codes.
func ValidPositionCode(code string) bool {
	return code != "" && !strings.EqualFold(code, "nan")
}

// ValidApplicationCode also rejects the total row of a daily report.
func ValidApplicationCode(code string) bool {
	return ValidPositionCode(code) && !strings.Contains(code, TotalRowMarker)
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDate reports whether s is a real calendar day in YYYY-MM-DD form.
func ValidDate(s string) bool {
	if !dateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// NormalizePositions normalizes codes, drops invalid ones and keeps the last row for a
// repeated code.
func NormalizePositions(in []Position) []Position {
	idx := make(map[string]int, len(in))
	out := make([]Position, 0, len(in))
	for _, p := range in {
		p.Code = NormalizeCode(p.Code)
		if !ValidPositionCode(p.Code) {
			continue
		}
		if i, ok := idx[p.Code]; ok {
			out[i] = p
			continue
		}
		idx[p.Code] = len(out)
		out = append(out, p)
	}
	return out
}

// NormalizeApplications stamps date on every row, normalizes codes, drops invalid ones
// and keeps the last row for a repeated code.
func NormalizeApplications(date string, in []Application) []Application {
	idx := make(map[string]int, len(in))
	out := make([]Application, 0, len(in))
	for _, a := range in {
		a.Code = NormalizeCode(a.Code)
		if !ValidApplicationCode(a.Code) {
			continue
		}
		a.Date = date
		if a.Applicants < 0 {
			a.Applicants = 0
		}
		if a.Passed < 0 {
			a.Passed = 0
		}
		if i, ok := idx[a.Code]; ok {
			out[i] = a
			continue
		}
		idx[a.Code] = len(out)
		out = append(out, a)
	}
	return out
}
