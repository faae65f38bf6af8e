package models

import "time"

// CheckIn is a presence session of a user at a store.
type CheckIn struct {
	ID        int64      `gorm:"column:checkin_id;primaryKey;autoIncrement"`
	UserID    int64      `gorm:"column:user_id;not null"`
	RegionID  int64      `gorm:"column:region_id;not null"`
	StoreID   int64      `gorm:"column:store_id;not null"`
	Latitude  float64    `gorm:"column:latitude;not null"`
	Longitude float64    `gorm:"column:longitude;not null"`
	StartedAt time.Time  `gorm:"column:started_at;not null"`
	EndedAt   *time.Time `gorm:"column:ended_at"`
	IsActive  bool       `gorm:"column:is_active;not null"`
}

func (CheckIn) TableName() string { return "checkins" }
