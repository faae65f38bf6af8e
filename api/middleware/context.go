package middleware

import (
	"context"

	"github.com/radarprecios/radarprecios-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID     contextKey = "user_id"
	ctxPermission contextKey = "permission_id"
)

// UserIDFromContext returns the authenticated user id, or 0 when the request
// is anonymous.
func UserIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if v, ok := ctx.Value(ctxUserID).(int64); ok {
		return v
	}
	return 0
}

func PermissionFromContext(ctx context.Context) enums.Permission {
	if ctx == nil {
		return 0
	}
	if v, ok := ctx.Value(ctxPermission).(enums.Permission); ok {
		return v
	}
	return 0
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithPermission injects the caller's permission tier into the context.
func WithPermission(ctx context.Context, permission enums.Permission) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPermission, permission)
}
