package controller

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hbgk/gkpulse/app/query/types"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	// ingestion
	r.HandleFunc("/upload/positions", c.HandleUploadPositions).Methods(http.MethodPost)
	r.HandleFunc("/upload/daily", c.HandleUploadDaily).Methods(http.MethodPost)

	// listings
	r.HandleFunc("/positions", c.HandlePositions).Methods(http.MethodGet)
	r.HandleFunc("/positions/wuhan", c.HandleWuhanPositions).Methods(http.MethodGet)
	r.HandleFunc("/positions/by-codes", c.HandleByCodes).Methods(http.MethodPost)
	r.HandleFunc("/positions/trend-by-codes", c.HandleTrendByCodes).Methods(http.MethodPost)
	r.HandleFunc("/filters", c.HandleFilters).Methods(http.MethodGet)

	// stats
	r.HandleFunc("/stats/dates", c.HandleDates).Methods(http.MethodGet)
	r.HandleFunc("/stats/by-region", c.HandleByRegion).Methods(http.MethodGet)
	r.HandleFunc("/stats/wuhan-districts", c.HandleWuhanDistricts).Methods(http.MethodGet)
	r.HandleFunc("/stats/trend", c.HandleTrend).Methods(http.MethodGet)
	r.HandleFunc("/stats/hot-positions", c.HandleHot).Methods(http.MethodGet)
	r.HandleFunc("/stats/cold-positions", c.HandleCold).Methods(http.MethodGet)
	r.HandleFunc("/stats/surge", c.HandleSurge).Methods(http.MethodGet)
	r.HandleFunc("/stats/momentum", c.HandleMomentum).Methods(http.MethodGet)
	r.HandleFunc("/stats/summary", c.HandleSummary).Methods(http.MethodGet)

	return r, nil
}
