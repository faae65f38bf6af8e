package checkins

import (
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
)

// CheckInInput opens a session for UserID at a store.
type CheckInInput struct {
	UserID    int64
	RegionID  int64
	StoreID   int64
	Latitude  *float64
	Longitude *float64
}

// CheckOutInput closes a session. A nil CheckInID closes the user's most
// recent active session.
type CheckOutInput struct {
	UserID    int64
	CheckInID *int64
}

// SessionDTO is the wire shape of a check-in session.
type SessionDTO struct {
	ID         int64      `json:"checkin_id"`
	UserID     int64      `json:"user_id"`
	RegionID   int64      `json:"region_id"`
	StoreID    int64      `json:"store_id"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	IsActive   bool       `json:"is_active"`
	RegionName *string    `json:"region_name,omitempty"`
	StoreName  *string    `json:"store_name,omitempty"`
}

// FromModel maps a session row to its DTO.
func FromModel(m models.CheckIn) SessionDTO {
	return SessionDTO{
		ID:        m.ID,
		UserID:    m.UserID,
		RegionID:  m.RegionID,
		StoreID:   m.StoreID,
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
		IsActive:  m.IsActive,
	}
}

type enrichedRow struct {
	models.CheckIn `gorm:"embedded"`
	RegionName     *string `gorm:"column:region_name"`
	StoreName      *string `gorm:"column:store_name"`
}

func (r enrichedRow) toDTO() SessionDTO {
	dto := FromModel(r.CheckIn)
	dto.RegionName = r.RegionName
	dto.StoreName = r.StoreName
	return dto
}
