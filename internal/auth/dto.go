package auth

import (
	"github.com/radarprecios/radarprecios-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the access token and the authenticated user.
type LoginResponse struct {
	AccessToken string         `json:"token"`
	ExpiresAt   int64          `json:"expires_at"`
	User        *users.UserDTO `json:"user"`
}
