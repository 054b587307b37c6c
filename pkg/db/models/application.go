package models

const ApplicationsTableName = "applications"

// Application is the cumulative registration count of one position as of one report date.
// Rows are never turned into deltas on write; every delta is derived from two snapshots.
type Application struct {
	Code       string `json:"code"`
	Date       string `json:"date"`
	Applicants int64  `json:"applicants"`
	Passed     int64  `json:"passed"`
}

// DailyTotal is an aggregate over the snapshots of one date.
type DailyTotal struct {
	Date       string `json:"date"`
	Applicants int64  `json:"applicants"`
	Passed     int64  `json:"passed"`
}
