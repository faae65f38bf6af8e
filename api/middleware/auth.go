package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/radarprecios/radarprecios-backend/api/responses"
	pkgAuth "github.com/radarprecios/radarprecios-backend/pkg/auth"
	"github.com/radarprecios/radarprecios-backend/pkg/config"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
)

// Auth requires a valid access token and stores the caller's user id and
// permission tier on the request context. A bare token without the Bearer
// scheme is accepted as well.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				unauthorized(w, r, logg, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expired"
				}
				unauthorized(w, r, logg, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			ctx = WithPermission(WithUserID(ctx, claims.UserID), claims.PermissionID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID)
				ctx = logg.WithField(ctx, "permission_id", int(claims.PermissionID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	scheme, rest, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	if found {
		return ""
	}
	return header
}

func unauthorized(w http.ResponseWriter, r *http.Request, logg *logger.Logger, err *pkgerrors.Error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="radarprecios"`)
	responses.WriteError(r.Context(), logg, w, err)
}
