package controllers

import (
	"net/http"

	"github.com/radarprecios/radarprecios-backend/api/middleware"
	"github.com/radarprecios/radarprecios-backend/api/responses"
	"github.com/radarprecios/radarprecios-backend/api/validators"
	"github.com/radarprecios/radarprecios-backend/internal/checkins"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
)

type checkInRequest struct {
	RegionID  int64    `json:"region_id"`
	StoreID   int64    `json:"store_id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// CheckIn opens a presence session, closing whichever one the user had open.
func CheckIn(svc checkins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkin service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var body checkInRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.CheckIn(r.Context(), checkins.CheckInInput{
			UserID:    userID,
			RegionID:  body.RegionID,
			StoreID:   body.StoreID,
			Latitude:  body.Latitude,
			Longitude: body.Longitude,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// CheckOut closes the session named by the id route parameter, or the
// caller's latest active session when the route has none.
func CheckOut(svc checkins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkin service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		input := checkins.CheckOutInput{UserID: userID}
		if validators.HasURLParam(r, "id") {
			id, err := validators.ParseIDParam(r, "id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.CheckInID = &id
		}

		session, err := svc.CheckOut(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

func ActiveCheckIn(svc checkins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkin service unavailable"))
			return
		}

		session, err := svc.Active(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}
