package models

import (
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/enums"
)

// User is a field agent, supervisor or administrator.
type User struct {
	ID           int64            `gorm:"column:user_id;primaryKey;autoIncrement"`
	Name         string           `gorm:"column:name;not null"`
	Email        string           `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string           `gorm:"column:password_hash;not null"`
	PermissionID enums.Permission `gorm:"column:permission_id;not null"`
	RegionID     *int64           `gorm:"column:region_id"`
	IsActive     bool             `gorm:"column:is_active;not null"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (User) TableName() string { return "users" }
