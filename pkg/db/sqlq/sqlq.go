// Package sqlq builds the listing and aggregation statements shared by the SQLite and
// PostgreSQL stores. Only placeholders, substring tests and integer sums differ between
// the two dialects.
package sqlq

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/hbgk/gkpulse/pkg/db/models"
)

// Dialect captures the syntax differences between backends.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Contains renders a case-sensitive substring test of needle within col.
	Contains func(col, needle string) string
	// SumInt renders an integer SUM that scans into int64.
	SumInt func(expr string) string
}

var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	Contains:    func(col, needle string) string { return fmt.Sprintf("instr(%s, %s) > 0", col, needle) },
	SumInt:      func(expr string) string { return fmt.Sprintf("COALESCE(SUM(%s), 0)", expr) },
}

var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Contains:    func(col, needle string) string { return fmt.Sprintf("strpos(%s, %s) > 0", col, needle) },
	SumInt:      func(expr string) string { return fmt.Sprintf("COALESCE(SUM(%s), 0)::BIGINT", expr) },
}

// Args accumulates bind values and hands out placeholders in order.
type Args struct {
	d    Dialect
	vals []any
}

func NewArgs(d Dialect) *Args { return &Args{d: d} }

// Add binds v and returns its placeholder.
func (a *Args) Add(v any) string {
	a.vals = append(a.vals, v)
	return a.d.Placeholder(len(a.vals))
}

// Values returns the bound values.
func (a *Args) Values() []any { return a.vals }

// KeywordColumns are the free-text fields a keyword is matched against.
var KeywordColumns = []string{"name", "org", "unit", "major_pg", "major_ug", "intro", "notes"}

func selectColumns() string {
	cols := make([]string, 0, len(models.PositionColumns)+2)
	for _, c := range models.PositionColumns {
		cols = append(cols, "p."+c)
	}
	cols = append(cols, "COALESCE(a.applicants, 0)", "COALESCE(a.passed, 0)")
	return strings.Join(cols, ", ")
}

func filters(d Dialect, args *Args, q models.PositionQuery) []string {
	var where []string
	if q.City != "" {
		where = append(where, d.Contains("p.city", args.Add(q.City)))
	}
	if q.District != "" {
		where = append(where, "p.district = "+args.Add(q.District))
	}
	if q.Education != "" {
		where = append(where, d.Contains("p.education", args.Add(q.Education)))
	}
	if q.Target != "" {
		where = append(where, "p.target = "+args.Add(q.Target))
	}
	if q.Keyword != "" {
		ors := make([]string, 0, len(KeywordColumns))
		for _, c := range KeywordColumns {
			ors = append(ors, d.Contains("p."+c, args.Add(q.Keyword)))
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	return where
}

func whereClause(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}

func orderBy(sort models.SortOrder) string {
	if sort == models.SortCold {
		return " ORDER BY COALESCE(a.applicants, 0) ASC, p.quota DESC, p.code ASC"
	}
	return " ORDER BY COALESCE(a.applicants, 0) DESC, p.code ASC"
}

// Listing builds the page query and the matching count query for q at date.
func Listing(d Dialect, q models.PositionQuery, date string) (string, []any, string, []any) {
	args := NewArgs(d)
	join := "LEFT JOIN " + models.ApplicationsTableName + " a ON a.code = p.code AND a.date = " + args.Add(date)
	where := whereClause(filters(d, args, q))

	list := "SELECT " + selectColumns() + " FROM " + models.PositionsTableName + " p " + join + where + orderBy(q.Sort)
	if q.Limit > 0 {
		list += " LIMIT " + args.Add(q.Limit) + " OFFSET " + args.Add(max(q.Offset, 0))
	}

	countArgs := NewArgs(d)
	count := "SELECT COUNT(*) FROM " + models.PositionsTableName + " p" + whereClause(filters(d, countArgs, q))
	return list, args.Values(), count, countArgs.Values()
}

// MaxBindCodes caps the codes bound into one IN list. SQLite allows 32766 variables per
// statement and PostgreSQL 65535; callers split larger sets and merge the results.
const MaxBindCodes = 500

// SortHot orders merged ByCodes results the way a single statement would.
func SortHot(stats []models.PositionStats) {
	slices.SortFunc(stats, func(a, b models.PositionStats) int {
		if c := cmp.Compare(b.Applicants, a.Applicants); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
}

// SortSnapshots orders merged Snapshots results by date, then code.
func SortSnapshots(apps []models.Application) {
	slices.SortFunc(apps, func(a, b models.Application) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
}

// ByCodes builds the stats query for an explicit code set of at most MaxBindCodes.
func ByCodes(d Dialect, codes []string, date string) (string, []any) {
	args := NewArgs(d)
	join := "LEFT JOIN " + models.ApplicationsTableName + " a ON a.code = p.code AND a.date = " + args.Add(date)
	ph := make([]string, len(codes))
	for i, c := range codes {
		ph[i] = args.Add(c)
	}
	q := "SELECT " + selectColumns() + " FROM " + models.PositionsTableName + " p " + join +
		" WHERE p.code IN (" + strings.Join(ph, ", ") + ")" + orderBy(models.SortHot)
	return q, args.Values()
}

// GroupStats builds a per-city (city == "") or per-district (within city) aggregate.
func GroupStats(d Dialect, city, date string) (string, []any) {
	args := NewArgs(d)
	key := "p.city"
	join := "LEFT JOIN " + models.ApplicationsTableName + " a ON a.code = p.code AND a.date = " + args.Add(date)
	where := ""
	if city != "" {
		key = "p.district"
		where = " WHERE p.city = " + args.Add(city)
	}
	q := "SELECT " + key + ", COUNT(*), " + d.SumInt("p.quota") + ", " +
		d.SumInt("COALESCE(a.applicants, 0)") + ", " + d.SumInt("COALESCE(a.passed, 0)") +
		" FROM " + models.PositionsTableName + " p " + join + where +
		" GROUP BY " + key + " ORDER BY 4 DESC, 1 ASC"
	return q, args.Values()
}

// Totals builds the whole-set aggregate at date.
func Totals(d Dialect, date string) (string, []any) {
	args := NewArgs(d)
	q := "SELECT COUNT(*), " + d.SumInt("p.quota") + ", " +
		d.SumInt("COALESCE(a.applicants, 0)") + ", " + d.SumInt("COALESCE(a.passed, 0)") +
		" FROM " + models.PositionsTableName + " p LEFT JOIN " + models.ApplicationsTableName +
		" a ON a.code = p.code AND a.date = " + args.Add(date)
	return q, args.Values()
}

// DailyTotals builds the per-date sums for a trend scope. The global and city scopes only
// count snapshots of known positions, matching Totals.
func DailyTotals(d Dialect, scope models.TrendScope) (string, []any) {
	args := NewArgs(d)
	from := " FROM " + models.ApplicationsTableName + " a"
	var where string
	switch {
	case scope.Code != "":
		where = " WHERE a.code = " + args.Add(scope.Code)
	case scope.City != "":
		from += " JOIN " + models.PositionsTableName + " p ON p.code = a.code"
		where = " WHERE p.city = " + args.Add(scope.City)
	default:
		from += " JOIN " + models.PositionsTableName + " p ON p.code = a.code"
	}
	q := "SELECT a.date, " + d.SumInt("a.applicants") + ", " + d.SumInt("a.passed") +
		from + where + " GROUP BY a.date ORDER BY a.date"
	return q, args.Values()
}

// Snapshots builds the query returning every snapshot of codes (at most MaxBindCodes).
func Snapshots(d Dialect, codes []string) (string, []any) {
	args := NewArgs(d)
	ph := make([]string, len(codes))
	for i, c := range codes {
		ph[i] = args.Add(c)
	}
	q := "SELECT code, date, applicants, passed FROM " + models.ApplicationsTableName +
		" WHERE code IN (" + strings.Join(ph, ", ") + ") ORDER BY date, code"
	return q, args.Values()
}

// UpsertPosition builds the single-row replace-or-insert statement for positions.
func UpsertPosition(d Dialect) string {
	cols := models.PositionColumns
	ph := make([]string, len(cols))
	sets := make([]string, 0, len(cols)-1)
	for i, c := range cols {
		ph[i] = d.Placeholder(i + 1)
		if c != "code" {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	return "INSERT INTO " + models.PositionsTableName + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.Join(ph, ", ") + ") ON CONFLICT (code) DO UPDATE SET " + strings.Join(sets, ", ")
}

// UpsertApplication builds the single-row replace-or-insert statement for snapshots.
func UpsertApplication(d Dialect) string {
	return "INSERT INTO " + models.ApplicationsTableName + " (code, date, applicants, passed) VALUES (" +
		d.Placeholder(1) + ", " + d.Placeholder(2) + ", " + d.Placeholder(3) + ", " + d.Placeholder(4) +
		") ON CONFLICT (code, date) DO UPDATE SET applicants = excluded.applicants, passed = excluded.passed"
}
