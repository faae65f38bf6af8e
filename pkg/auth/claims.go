package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/radarprecios/radarprecios-backend/pkg/enums"
)

var (
	ErrMissingUser       = errors.New("token missing userId")
	ErrUnknownPermission = errors.New("token carries unknown permissionId")
)

type AccessTokenPayload struct {
	UserID       int64
	PermissionID enums.Permission
	// JTI is generated when blank.
	JTI string
}

// AccessTokenClaims keeps the userId / permissionId claim names the web
// client already reads.
type AccessTokenClaims struct {
	UserID       int64            `json:"userId"`
	PermissionID enums.Permission `json:"permissionId"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims pass, on both mint and parse.
func (c AccessTokenClaims) Validate() error {
	if c.UserID <= 0 {
		return ErrMissingUser
	}
	if !c.PermissionID.IsValid() {
		return fmt.Errorf("%w %d", ErrUnknownPermission, c.PermissionID)
	}
	return nil
}
