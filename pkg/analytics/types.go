package analytics

import "github.com/hbgk/gkpulse/pkg/db/models"

// TrendPoint is the cumulative sum of one scope at one date.
type TrendPoint struct {
	Date       string `json:"date"`
	Applicants int64  `json:"applicants"`
	Passed     int64  `json:"passed"`
}

// CodeSeries is one position's applicants aligned to a shared date axis.
type CodeSeries struct {
	Code string  `json:"code"`
	Name string  `json:"name"`
	Data []int64 `json:"data"`
}

// MultiTrend is the dense date x code matrix for a set of codes.
type MultiTrend struct {
	Positions []CodeSeries `json:"positions"`
	Dates     []string     `json:"dates"`
}

// SurgeItem is one position's change between the two latest dates.
type SurgeItem struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	Unit            string `json:"unit"`
	City            string `json:"city"`
	District        string `json:"district"`
	Quota           int64  `json:"quota"`
	ApplicantsToday int64  `json:"applicants_today"`
	ApplicantsPrev  int64  `json:"applicants_prev"`
	Delta           int64  `json:"delta"`
}

// SurgeReport lists the largest day-over-day increases overall and within the capital.
type SurgeReport struct {
	Data     []SurgeItem `json:"data"`
	Wuhan    []SurgeItem `json:"wuhan"`
	Date     *string     `json:"date"`
	PrevDate *string     `json:"prev_date"`
}

// Momentum labels.
const (
	LabelSurge        = "surge"
	LabelAccelerating = "accelerating"
	LabelCooling      = "cooling"
	LabelSteady       = "steady"
)

// MomentumItem is a labelled position.
type MomentumItem struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	City       string `json:"city"`
	Applicants int64  `json:"applicants"`
	Previous   int64  `json:"previous"`
	Growth     int64  `json:"growth"`
	Label      string `json:"label"`
}

// MomentumGroup counts the positions meeting one momentum condition.
type MomentumGroup struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

// MomentumReport holds the labelled positions (steady ones omitted) and the per-condition
// groups. A position can meet several conditions; its label is the first one met.
type MomentumReport struct {
	Data         []MomentumItem `json:"data"`
	Surge        MomentumGroup  `json:"surge"`
	Accelerating MomentumGroup  `json:"accelerating"`
	Cooling      MomentumGroup  `json:"cooling"`
	Date         *string        `json:"date"`
	PrevDate     *string        `json:"prev_date"`
}

// Summary is the dashboard header.
type Summary struct {
	HasPositions bool `json:"has_positions"`
	models.Totals
	Dates          []string `json:"daily_files"`
	Cities         []string `json:"cities"`
	EducationTypes []string `json:"education_types"`
	Date           *string  `json:"date"`
}

// RegionReport is the per-city rollup.
type RegionReport struct {
	Cities    []models.RegionStat `json:"cities"`
	Districts []models.RegionStat `json:"districts"`
	Date      *string             `json:"date"`
}

// DistrictReport is the per-district rollup of one city with its totals.
type DistrictReport struct {
	Data []models.RegionStat `json:"data"`
	models.Totals
	Date *string `json:"date"`
}

// MapRegion is a rollup row carrying the name the map renderer expects.
type MapRegion struct {
	models.RegionStat
	MapName string `json:"map_name"`
}

// MapData feeds the province and capital choropleths.
type MapData struct {
	Province []MapRegion `json:"province"`
	Wuhan    []MapRegion `json:"wuhan"`
	Date     *string     `json:"date"`
}

// ByCodesResult answers a watch-list lookup.
type ByCodesResult struct {
	Data       []models.PositionStats `json:"data"`
	Total      int                    `json:"total"`
	NotFound   []string               `json:"not_found"`
	LatestDate *string                `json:"latest_date"`
}

// nullable maps "" to a JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
