// Package schema maps arbitrarily named spreadsheet columns onto the canonical position and
// daily application records.
package schema

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/hbgk/gkpulse/pkg/sheet"
)

var (
	ErrNoCodeColumn       = errors.New("no position code column")
	ErrNoApplicantsColumn = errors.New("no applicants column")
)

// PositionRecord is a mapped position plus the raw geo hints found in the sheet. City and
// District of the embedded Position are left empty for the classifier.
type PositionRecord struct {
	models.Position
	CityHint     string
	DistrictHint string
}

// PositionBatch is the result of mapping a positions sheet.
type PositionBatch struct {
	Records []PositionRecord
	Mapping Mapping
	// SyntheticCodes is set when no code column was found and codes were numbered by row.
	// Such codes change when rows are reordered and can collide with real ones.
	SyntheticCodes bool
	Warnings       []string
}

// DailyBatch is the result of mapping a daily report sheet.
type DailyBatch struct {
	Rows     []models.Application
	Mapping  Mapping
	Warnings []string
}

// MapPositions maps every row of t onto a position record.
func MapPositions(t *sheet.Table) (PositionBatch, error) {
	if t == nil || len(t.Header) == 0 {
		return PositionBatch{}, sheet.ErrEmptyTable
	}
	m := mapHeaders(t.Header)
	batch := PositionBatch{Mapping: m, Records: make([]PositionRecord, 0, len(t.Rows))}

	codeCol := m.Column(FieldCode)
	if codeCol < 0 {
		batch.SyntheticCodes = true
		batch.Warnings = append(batch.Warnings,
			"no position code column; codes numbered by row are unstable across re-imports")
	}

	badQuota := 0
	for i := range t.Rows {
		get := func(f string) string { return text(t.Cell(i, m.Column(f))) }

		var p models.Position
		if codeCol < 0 {
			p.Code = strconv.Itoa(i + 1)
		} else {
			p.Code = models.NormalizeCode(get(FieldCode))
		}
		p.Org = get(FieldOrg)
		p.Unit = get(FieldUnit)
		p.Name = get(FieldName)
		p.Education = get(FieldEducation)
		p.Degree = get(FieldDegree)
		p.MajorPG = get(FieldMajorPG)
		p.MajorUG = get(FieldMajorUG)
		p.Target = get(FieldTarget)
		p.Notes = get(FieldNotes)
		p.Intro = get(FieldIntro)

		quota, ok := ParseInt(get(FieldQuota))
		if !ok || quota < 0 {
			if m.Column(FieldQuota) >= 0 {
				badQuota++
			}
			quota = 1
		}
		p.Quota = quota

		batch.Records = append(batch.Records, PositionRecord{
			Position:     p,
			CityHint:     get(FieldCity),
			DistrictHint: get(FieldDistrict),
		})
	}
	if badQuota > 0 {
		batch.Warnings = append(batch.Warnings, fmt.Sprintf("%d rows with unreadable quota defaulted to 1", badQuota))
	}
	return batch, nil
}

// mapHeaders assigns headers to canonical fields in three passes: exact alias, alias
// contained in the header, header equal to the field name. Each header feeds one field.
func mapHeaders(header []string) Mapping {
	m := Mapping{}
	used := make([]bool, len(header))

	claim := func(f string, match func(h string) bool) {
		if _, done := m[f]; done {
			return
		}
		for i, h := range header {
			if !used[i] && h != "" && match(h) {
				m[f] = i
				used[i] = true
				return
			}
		}
	}

	for _, f := range positionFields {
		for _, alias := range f.aliases {
			claim(f.name, func(h string) bool { return h == alias })
		}
	}
	for _, f := range positionFields {
		for _, alias := range f.aliases {
			claim(f.name, func(h string) bool { return strings.Contains(h, alias) })
		}
	}
	for _, f := range positionFields {
		claim(f.name, func(h string) bool { return h == f.name })
	}
	return m
}

// MapDaily maps a daily report. A leading title line is dropped first.
func MapDaily(t *sheet.Table) (DailyBatch, error) {
	if t == nil || len(t.Header) == 0 {
		return DailyBatch{}, sheet.ErrEmptyTable
	}
	work := *t
	if first := work.Header[0]; strings.HasPrefix(first, dailyTitlePrefix) || strings.Contains(first, dailyTitleMarker) {
		if err := work.PromoteFirstRow(); err != nil {
			return DailyBatch{}, err
		}
	}

	m := Mapping{}
	for i, h := range work.Header {
		switch {
		case strings.Contains(h, dailyCodeMarker):
			if _, ok := m[FieldCode]; !ok {
				m[FieldCode] = i
			}
		case containsAny(h, applicantMarkers):
			if _, ok := m["applicants"]; !ok {
				m["applicants"] = i
			}
		case strings.Contains(h, passedMarkerA) && strings.Contains(h, passedMarkerB):
			if _, ok := m["passed"]; !ok {
				m["passed"] = i
			}
		}
	}
	if m.Column(FieldCode) < 0 {
		return DailyBatch{}, ErrNoCodeColumn
	}
	if m.Column("applicants") < 0 {
		return DailyBatch{}, ErrNoApplicantsColumn
	}

	batch := DailyBatch{Mapping: m, Rows: make([]models.Application, 0, len(work.Rows))}
	bad := 0
	for i := range work.Rows {
		applicants, ok := ParseCount(work.Cell(i, m.Column("applicants")))
		if !ok {
			bad++
		}
		passed, _ := ParseCount(work.Cell(i, m.Column("passed")))
		batch.Rows = append(batch.Rows, models.Application{
			Code:       models.NormalizeCode(work.Cell(i, m.Column(FieldCode))),
			Applicants: applicants,
			Passed:     passed,
		})
	}
	if bad > 0 {
		batch.Warnings = append(batch.Warnings, fmt.Sprintf("%d rows with unreadable applicant counts read as 0", bad))
	}
	return batch, nil
}

// ParseInt reads integers leniently: thousands separators and a fractional part such as
// "12.0" are accepted. The fraction is truncated.
func ParseInt(s string) (int64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return 0, false
	}
	return int64(f), true
}

// ParseCount is ParseInt for counts: unreadable or negative values are 0.
func ParseCount(s string) (int64, bool) {
	n, ok := ParseInt(s)
	if !ok || n < 0 {
		return 0, false
	}
	return n, true
}

func text(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
