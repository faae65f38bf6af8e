package controllers

import (
	"net/http"

	"github.com/radarprecios/radarprecios-backend/api/middleware"
	"github.com/radarprecios/radarprecios-backend/api/responses"
	"github.com/radarprecios/radarprecios-backend/api/validators"
	"github.com/radarprecios/radarprecios-backend/internal/users"
	"github.com/radarprecios/radarprecios-backend/pkg/enums"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
)

type createUserRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	PermissionID int    `json:"permission_id" validate:"required"`
	RegionID     *int64 `json:"region_id" validate:"omitempty,gt=0"`
}

// CreateUser registers a user on behalf of an administrator.
func CreateUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		var body createUserRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Create(r.Context(), middleware.PermissionFromContext(r.Context()), users.CreateInput{
			Name:         validators.SanitizeString(body.Name, 120),
			Email:        body.Email,
			Password:     body.Password,
			PermissionID: enums.Permission(body.PermissionID),
			RegionID:     body.RegionID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}

// CurrentUser returns the authenticated caller.
func CurrentUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		user, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}
