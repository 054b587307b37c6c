package controller

import (
	"context"
	"net/http"

	"github.com/hbgk/gkpulse/pkg/analytics"
	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/hbgk/gkpulse/pkg/geo"
)

type rankedResponse struct {
	Data []models.PositionStats `json:"data"`
	Date *string                `json:"date"`
}

// HandleDates lists the stored snapshot dates, oldest first.
func (c *Controller) HandleDates(w http.ResponseWriter, r *http.Request) {
	c.serveCached(w, r, func(ctx context.Context) (any, error) {
		dates, err := c.App.Engine.Dates(ctx)
		if err != nil {
			return nil, err
		}
		return map[string][]string{"dates": dates}, nil
	})
}

// HandleByRegion returns per-city rollups at ?date.
func (c *Controller) HandleByRegion(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.serveCached(w, r, func(ctx context.Context) (any, error) {
		return c.App.Engine.Regions(ctx, date)
	})
}

// HandleWuhanDistricts returns the capital's district rollups and their totals at ?date.
func (c *Controller) HandleWuhanDistricts(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.serveCached(w, r, func(ctx context.Context) (any, error) {
		return c.App.Engine.Districts(ctx, geo.Capital, date)
	})
}

// HandleTrend returns one point per stored date.
// Query parameters: position_code or city; neither means the global trend.
func (c *Controller) HandleTrend(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	scope := models.TrendScope{
		Code: models.NormalizeCode(qs.Get("position_code")),
		City: qs.Get("city"),
	}
	c.serveCached(w, r, func(ctx context.Context) (any, error) {
		points, err := c.App.Engine.Trend(ctx, scope)
		if err != nil {
			return nil, err
		}
		return map[string][]analytics.TrendPoint{"data": points}, nil
	})
}

// HandleHot returns the most applied-to positions at ?date.
func (c *Controller) HandleHot(w http.ResponseWriter, r *http.Request) {
	c.ranked(w, r, c.App.Engine.Hot)
}

// HandleCold returns the least applied-to positions at ?date.
func (c *Controller) HandleCold(w http.ResponseWriter, r *http.Request) {
	c.ranked(w, r, c.App.Engine.Cold)
}

func (c *Controller) ranked(w http.ResponseWriter, r *http.Request, rank func(context.Context, int, string) (models.PositionPage, error)) {
	limit, err := parseLimit(r, analytics.DefaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.serveCached(w, r, func(ctx context.Context) (any, error) {
		page, err := rank(ctx, limit, date)
		if err != nil {
			return nil, err
		}
		return rankedResponse{Data: page.Data, Date: nullable(page.Date)}, nil
	})
}

// HandleSurge returns the largest day-over-day applicant increases.
func (c *Controller) HandleSurge(w http.ResponseWriter, r *http.Request) {
	c.serveCached(w, r, func(ctx context.Context) (any, error) {
		return c.App.Engine.Surge(ctx)
	})
}

// HandleMomentum labels positions by their latest day-over-day growth.
func (c *Controller) HandleMomentum(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, analytics.SurgeLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.serveCached(w, r, func(ctx context.Context) (any, error) {
		return c.App.Engine.Momentum(ctx, limit)
	})
}

// HandleSummary returns the dashboard summary at ?date.
func (c *Controller) HandleSummary(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.serveCached(w, r, func(ctx context.Context) (any, error) {
		return c.App.Engine.Summary(ctx, date)
	})
}
