package controllers

import (
	"net/http"

	"github.com/radarprecios/radarprecios-backend/api/responses"
	"github.com/radarprecios/radarprecios-backend/api/validators"
	"github.com/radarprecios/radarprecios-backend/internal/auth"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
)

// AuthLogin exchanges credentials for an access token. The token is also
// echoed in X-Radar-Token for clients that cannot read the body on redirects.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Radar-Token", result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}
