package controller

import (
	"context"
	"io"
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/hbgk/gkpulse/pkg/geo"
)

const maxCodesBody = 1 << 20

type listingResponse struct {
	Data     []models.PositionStats `json:"data"`
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
	Date     *string                `json:"date"`
}

// HandlePositions returns one filtered page of positions with their snapshot at ?date
// (latest by default).
// Query parameters: city, district, education, target, keyword, date, page, page_size.
func (c *Controller) HandlePositions(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	c.listPositions(w, r, models.PositionQuery{
		City:      qs.Get("city"),
		District:  qs.Get("district"),
		Education: qs.Get("education"),
		Target:    qs.Get("target"),
		Keyword:   qs.Get("keyword"),
	})
}

// HandleWuhanPositions is HandlePositions restricted to the capital.
// Query parameters: district, keyword, date, page, page_size.
func (c *Controller) HandleWuhanPositions(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	c.listPositions(w, r, models.PositionQuery{
		City:     geo.Capital,
		District: qs.Get("district"),
		Keyword:  qs.Get("keyword"),
	})
}

func (c *Controller) listPositions(w http.ResponseWriter, r *http.Request, q models.PositionQuery) {
	page, err := parsePageSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q.Date = date
	q.Limit = page.PageSize
	q.Offset = page.Offset()
	q.Sort = models.SortHot

	c.serveCached(w, r, func(ctx context.Context) (any, error) {
		res, err := c.App.Engine.Positions(ctx, q)
		if err != nil {
			return nil, err
		}
		return listingResponse{
			Data:     res.Data,
			Total:    res.Total,
			Page:     page.Page,
			PageSize: page.PageSize,
			Date:     nullable(res.Date),
		}, nil
	})
}

func readCodes(r *http.Request) ([]string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCodesBody))
	if err != nil {
		return nil, err
	}
	var codes []string
	if err := json.Unmarshal(body, &codes); err != nil {
		return nil, errInvalidCodes
	}
	return codes, nil
}

// HandleByCodes looks up a watch list at the latest date.
// Body: JSON array of position codes.
func (c *Controller) HandleByCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := readCodes(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	res, err := c.App.Engine.ByCodes(r.Context(), codes)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleTrendByCodes aligns the applicant series of several codes on one date axis.
// Body: JSON array of position codes.
func (c *Controller) HandleTrendByCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := readCodes(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	res, err := c.App.Engine.MultiTrend(r.Context(), codes)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleFilters lists the distinct values each listing filter accepts.
func (c *Controller) HandleFilters(w http.ResponseWriter, r *http.Request) {
	c.serveCached(w, r, func(ctx context.Context) (any, error) {
		return c.App.Engine.Filters(ctx)
	})
}
