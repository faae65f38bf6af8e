package users

import (
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	"github.com/radarprecios/radarprecios-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID           int64            `json:"user_id"`
	Name         string           `json:"name"`
	Email        string           `json:"email"`
	PermissionID enums.Permission `json:"permission_id"`
	RegionID     *int64           `json:"region_id"`
	IsActive     bool             `json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
}

// CreateInput is what an administrator submits to register a user.
type CreateInput struct {
	Name         string
	Email        string
	Password     string
	PermissionID enums.Permission
	RegionID     *int64
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Name         string
	Email        string
	PasswordHash string
	PermissionID enums.Permission
	RegionID     *int64
	CreatedAt    time.Time
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PermissionID: u.PermissionID,
		RegionID:     u.RegionID,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Name:         c.Name,
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		PermissionID: c.PermissionID,
		RegionID:     c.RegionID,
		IsActive:     true,
		CreatedAt:    c.CreatedAt,
	}
}
