package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/hbgk/gkpulse/app/query/types"
	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/hbgk/gkpulse/pkg/ingest"
	"github.com/hbgk/gkpulse/pkg/schema"
	"github.com/hbgk/gkpulse/pkg/sheet"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeRaw(w http.ResponseWriter, statusCode int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// validation errors are the caller's fault and surface as 400
var validationErrors = []error{
	ingest.ErrSealedDate,
	ingest.ErrInvalidDate,
	schema.ErrNoCodeColumn,
	schema.ErrNoApplicantsColumn,
	sheet.ErrEmptyTable,
	sheet.ErrUnsupportedFormat,
}

func isValidation(err error) bool {
	var pe *parseError
	if errors.As(err, &pe) {
		return true
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// fail writes 400 for validation errors and a logged 500 for everything else.
func (c *Controller) fail(w http.ResponseWriter, r *http.Request, err error) {
	if isValidation(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.App.Logger.Error("Request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, "query failed")
}

// serveCached answers from the response cache, computing and storing on a miss. Only
// successful responses are cached.
func (c *Controller) serveCached(w http.ResponseWriter, r *http.Request, compute func(ctx context.Context) (any, error)) {
	cache := c.App.Cache
	key := types.CacheKey(r.URL)
	if body, ok := cache.Load(key); ok {
		w.Header().Set("X-Cache", "HIT")
		writeRaw(w, http.StatusOK, body)
		return
	}

	gen := cache.Generation()
	v, err := compute(r.Context())
	if err != nil {
		c.fail(w, r, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	cache.Store(gen, key, body)
	w.Header().Set("X-Cache", "MISS")
	writeRaw(w, http.StatusOK, body)
}

// dateParam reads ?date=; "" selects the latest snapshot.
func dateParam(r *http.Request) (string, error) {
	d := r.URL.Query().Get("date")
	if d != "" && !models.ValidDate(d) {
		return "", errInvalidDate
	}
	return d, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
