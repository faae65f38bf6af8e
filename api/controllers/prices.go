package controllers

import (
	"net/http"

	"github.com/radarprecios/radarprecios-backend/api/middleware"
	"github.com/radarprecios/radarprecios-backend/api/responses"
	"github.com/radarprecios/radarprecios-backend/api/validators"
	"github.com/radarprecios/radarprecios-backend/internal/prices"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/radarprecios/radarprecios-backend/pkg/pagination"
	"github.com/shopspring/decimal"
)

const pricePhotoField = "photo"

// RecordPrice accepts a multipart price submission with an optional photo.
func RecordPrice(svc prices.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "price service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		if err := validators.ParseMultipart(w, r, maxUploadBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := recordInputFromForm(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.UserID = userID

		price, err := svc.Record(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, price)
	}
}

func recordInputFromForm(r *http.Request) (prices.RecordInput, error) {
	var input prices.RecordInput

	ids := map[string]*int64{}
	for _, key := range []string{"product_id", "store_id", "currency_id"} {
		v, err := validators.FormInt64(r, key)
		if err != nil {
			return input, err
		}
		ids[key] = v
	}
	input.ProductID = deref(ids["product_id"])
	input.StoreID = deref(ids["store_id"])
	input.CurrencyID = deref(ids["currency_id"])

	if raw := validators.FormValue(r, "price_amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "price_amount must be a number").
				WithDetails(map[string]any{"field": "price_amount"})
		}
		input.Amount = &amount
	}

	quantity, err := validators.FormInt(r, "quantity")
	if err != nil {
		return input, err
	}
	input.Quantity = quantity

	upload, err := validators.FormPhoto(r, pricePhotoField)
	if err != nil {
		return input, err
	}
	if upload != nil {
		input.Photo = &prices.PhotoInput{
			Body:        upload.Reader(),
			ContentType: upload.ContentType,
			Extension:   upload.Extension,
		}
	}
	return input, nil
}

type historyMeta struct {
	NextCursor string `json:"next_cursor,omitempty"`
}

// PriceHistory pages through the rows recorded for one product at one store,
// newest first.
func PriceHistory(svc prices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "price service unavailable"))
			return
		}

		var key prices.Key
		for _, p := range []struct {
			name string
			dest *int64
		}{
			{"product_id", &key.ProductID},
			{"store_id", &key.StoreID},
			{"currency_id", &key.CurrencyID},
		} {
			v, err := validators.ParseQueryInt64(r, p.name)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			*p.dest = deref(v)
		}

		limit, err := validators.ParseQueryInt64(r, "limit")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page := pagination.Params{Limit: int(deref(limit)), Cursor: r.URL.Query().Get("cursor")}

		history, err := svc.History(r.Context(), key, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMeta(w, http.StatusOK, history.Items, historyMeta{NextCursor: history.NextCursor})
	}
}

// CurrentPrices lists the current price of every matching product and store.
func CurrentPrices(svc prices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "price service unavailable"))
			return
		}

		var filter prices.CurrentFilter
		var err error
		if filter.ProductID, err = validators.ParseQueryInt64(r, "product_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.StoreID, err = validators.ParseQueryInt64(r, "store_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.RegionID, err = validators.ParseQueryInt64(r, "region_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		current, err := svc.ListCurrent(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, current)
	}
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
