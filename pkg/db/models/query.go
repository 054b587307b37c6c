package models

// SortOrder selects the ordering of a position listing.
type SortOrder string

const (
	// SortHot orders by applicants descending.
	SortHot SortOrder = "hot"
	// SortCold orders by applicants ascending, larger quotas first.
	SortCold SortOrder = "cold"
)

// PositionQuery filters a listing. Empty fields do not filter. Date "" means latest.
type PositionQuery struct {
	Date      string
	City      string // substring
	District  string // exact
	Education string // substring
	Target    string // exact
	Keyword   string // substring over the free-text fields
	Limit     int    // 0 means no limit
	Offset    int
	Sort      SortOrder
}

// PositionPage is one page of a listing. Total counts the unpaginated filtered set and
// Date is the resolved snapshot date, "" when the store has none.
type PositionPage struct {
	Data  []PositionStats `json:"data"`
	Total int64           `json:"total"`
	Date  string          `json:"date"`
}

// RegionStat aggregates positions sharing a city or a district.
type RegionStat struct {
	Name             string  `json:"name"`
	Positions        int64   `json:"positions"`
	Quota            int64   `json:"quota"`
	Applicants       int64   `json:"applicants"`
	Passed           int64   `json:"passed"`
	CompetitionRatio float64 `json:"competition_ratio"`
}

// Totals aggregates every position at one date.
type Totals struct {
	Positions  int64 `json:"total_positions"`
	Quota      int64 `json:"total_quota"`
	Applicants int64 `json:"total_applicants"`
	Passed     int64 `json:"total_passed"`
}

// FilterOptions lists the distinct values a listing can be filtered by.
type FilterOptions struct {
	Cities    []string            `json:"cities"`
	Districts map[string][]string `json:"districts"`
	Education []string            `json:"education"`
	Degree    []string            `json:"degree"`
	Target    []string            `json:"target"`
}

// TrendScope narrows a trend to one code or one city; zero value means every snapshot.
type TrendScope struct {
	Code string
	City string
}
