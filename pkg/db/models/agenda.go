package models

import (
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/enums"
	"github.com/radarprecios/radarprecios-backend/pkg/types"
)

// Agenda is a scheduled store visit assigned to a user.
type Agenda struct {
	ID               int64              `gorm:"column:agenda_id;primaryKey;autoIncrement"`
	Title            string             `gorm:"column:title;not null"`
	VisitDate        types.Date         `gorm:"column:visit_date;type:date;not null"`
	RegionID         int64              `gorm:"column:region_id;not null"`
	StoreID          int64              `gorm:"column:store_id;not null"`
	AssigneeUserID   int64              `gorm:"column:assignee_user_id;not null"`
	Notes            *string            `gorm:"column:notes"`
	Status           enums.AgendaStatus `gorm:"column:status;not null;default:'pendiente'"`
	Justification    *string            `gorm:"column:justification"`
	AttemptedStoreID *int64             `gorm:"column:attempted_store_id"`
	CreatedBy        *int64             `gorm:"column:created_by"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Agenda) TableName() string { return "agendas" }
