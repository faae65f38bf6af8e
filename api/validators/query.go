package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/types"
)

// ParseQueryInt64 returns nil when the parameter is absent.
func ParseQueryInt64(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a positive integer").
			WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

// ParseQueryDate returns nil when the parameter is absent.
func ParseQueryDate(r *http.Request, key string) (*types.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	d, err := types.ParseDate(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, key+" must be a date (YYYY-MM-DD)").
			WithDetails(map[string]any{"field": key})
	}
	return &d, nil
}

// ParseIDParam reads a positive integer route parameter.
func ParseIDParam(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key).
			WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// HasURLParam reports whether the matched route declares key.
func HasURLParam(r *http.Request, key string) bool {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return false
	}
	for _, k := range rctx.URLParams.Keys {
		if k == key {
			return true
		}
	}
	return false
}
