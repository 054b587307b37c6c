package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")

	if err := c.App.Store.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "errored", "error": "database connection error"})
		return
	}

	resp := map[string]string{"status": "ok", "backend": c.App.Store.Backend()}
	// a Redis outage is reported but does not fail the probe
	if c.App.RedisClient != nil {
		resp["redis"] = "ok"
		if err := c.App.RedisClient.Health(ctx); err != nil {
			resp["redis"] = "unavailable"
		}
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
