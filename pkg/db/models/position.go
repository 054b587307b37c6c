package models

import "math"

const PositionsTableName = "positions"

// PositionColumns is the persisted column order shared by both backends.
var PositionColumns = []string{
	"code", "name", "org", "unit", "quota", "city", "district",
	"education", "degree", "major_pg", "major_ug", "target", "notes", "intro",
}

// Position is one job opening, keyed by its code. City and District are always the output
// of the geo classifier.
type Position struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Org       string `json:"org"`
	Unit      string `json:"unit"`
	Quota     int64  `json:"quota"`
	City      string `json:"city"`
	District  string `json:"district"`
	Education string `json:"education"`
	Degree    string `json:"degree"`
	MajorPG   string `json:"major_pg"`
	MajorUG   string `json:"major_ug"`
	Target    string `json:"target"`
	Notes     string `json:"notes"`
	Intro     string `json:"intro"`
}

// Values returns the fields in PositionColumns order.
func (p Position) Values() []any {
	return []any{
		p.Code, p.Name, p.Org, p.Unit, p.Quota, p.City, p.District,
		p.Education, p.Degree, p.MajorPG, p.MajorUG, p.Target, p.Notes, p.Intro,
	}
}

// ScanTargets returns pointers in PositionColumns order for row scanning.
func (p *Position) ScanTargets() []any {
	return []any{
		&p.Code, &p.Name, &p.Org, &p.Unit, &p.Quota, &p.City, &p.District,
		&p.Education, &p.Degree, &p.MajorPG, &p.MajorUG, &p.Target, &p.Notes, &p.Intro,
	}
}

// PositionStats is a position joined with its snapshot at one date.
type PositionStats struct {
	Position
	Applicants       int64   `json:"applicants"`
	Passed           int64   `json:"passed"`
	CompetitionRatio float64 `json:"competition_ratio"`
}

// CompetitionRatio is applicants per seat rounded to one decimal. A zero or negative quota
// counts as one seat.
func CompetitionRatio(applicants, quota int64) float64 {
	if quota < 1 {
		quota = 1
	}
	return math.Round(float64(applicants)/float64(quota)*10) / 10
}

// WithRatio fills CompetitionRatio from the current counts.
func (s PositionStats) WithRatio() PositionStats {
	s.CompetitionRatio = CompetitionRatio(s.Applicants, s.Quota)
	return s
}
