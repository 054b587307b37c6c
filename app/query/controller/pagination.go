package controller

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxListLimit    = 100
)

type pageSpec struct {
	Page     int
	PageSize int
}

func (p pageSpec) Offset() int { return (p.Page - 1) * p.PageSize }

func parsePageSpec(r *http.Request) (pageSpec, error) {
	qs := r.URL.Query()
	spec := pageSpec{Page: 1, PageSize: defaultPageSize}
	if v := qs.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return pageSpec{}, errInvalidPage
		}
		spec.Page = n
	}
	if v := qs.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return pageSpec{}, errInvalidPageSize
		}
		spec.PageSize = min(n, maxPageSize)
	}
	return spec, nil
}

// parseLimit reads ?limit=, falling back to def when absent.
func parseLimit(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errInvalidLimit
	}
	return min(n, maxListLimit), nil
}

var (
	errInvalidPage     = &parseError{msg: "invalid page"}
	errInvalidPageSize = &parseError{msg: "invalid page_size"}
	errInvalidLimit    = &parseError{msg: "invalid limit"}
	errInvalidDate     = &parseError{msg: "invalid date, must be YYYY-MM-DD"}
	errInvalidCodes    = &parseError{msg: "body must be a JSON array of position codes"}
	errMissingFile     = &parseError{msg: "missing multipart field \"file\""}
)

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }
