package agendas

import (
	"encoding/json"
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	"github.com/radarprecios/radarprecios-backend/pkg/enums"
	"github.com/radarprecios/radarprecios-backend/pkg/types"
)

// CreateInput schedules one visit. CreatedBy is the acting user.
type CreateInput struct {
	Title          string
	Date           *types.Date
	RegionID       int64
	StoreID        int64
	AssigneeUserID int64
	Notes          *string
	CreatedBy      int64
}

// BulkItem is one requested visit of a batch. Date stays raw so a malformed
// value skips the item instead of failing the request.
type BulkItem struct {
	Title    string  `json:"title"`
	Date     string  `json:"date"`
	RegionID int64   `json:"region_id"`
	StoreID  int64   `json:"store_id"`
	Notes    *string `json:"notes"`
}

// UnmarshalJSON never fails: an item whose fields carry the wrong JSON types
// decodes to the zero item, which BulkCreate counts as skipped.
func (b *BulkItem) UnmarshalJSON(data []byte) error {
	type plain BulkItem
	var item plain
	if err := json.Unmarshal(data, &item); err != nil {
		*b = BulkItem{}
		return nil
	}
	*b = BulkItem(item)
	return nil
}

// BulkInput assigns every item to the same user.
type BulkInput struct {
	AssigneeUserID int64
	Items          []BulkItem
	CreatedBy      int64
}

// BulkResult carries the inserted rows plus how many items were dropped.
type BulkResult struct {
	Items   []AgendaDTO
	Skipped int
}

// UpdateInput patches only the non-nil fields.
type UpdateInput struct {
	Title          *string
	Date           *types.Date
	RegionID       *int64
	StoreID        *int64
	AssigneeUserID *int64
	// Notes may be sent as null to clear them.
	Notes  types.Nullable[string]
	Status *enums.AgendaStatus
}

// JustifyInput marks a visit as not executed.
type JustifyInput struct {
	Justification    string
	AttemptedStoreID *int64
}

// ListFilter narrows List; nil fields are ignored.
type ListFilter struct {
	Date           *types.Date
	AssigneeUserID *int64
	RegionID       *int64
	StoreID        *int64
	Status         *enums.AgendaStatus
}

// AgendaDTO is the wire shape of an agenda item.
type AgendaDTO struct {
	ID               int64              `json:"agenda_id"`
	Title            string             `json:"title"`
	Date             types.Date         `json:"date"`
	RegionID         int64              `json:"region_id"`
	StoreID          int64              `json:"store_id"`
	AssigneeUserID   int64              `json:"assignee_user_id"`
	Notes            *string            `json:"notes"`
	Status           enums.AgendaStatus `json:"status"`
	Justification    *string            `json:"justification"`
	AttemptedStoreID *int64             `json:"attempted_store_id"`
	CreatedBy        *int64             `json:"created_by"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	RegionName       *string            `json:"region_name,omitempty"`
	StoreName        *string            `json:"store_name,omitempty"`
}

// FromModel maps an agenda row to its DTO.
func FromModel(m models.Agenda) AgendaDTO {
	return AgendaDTO{
		ID:               m.ID,
		Title:            m.Title,
		Date:             m.VisitDate,
		RegionID:         m.RegionID,
		StoreID:          m.StoreID,
		AssigneeUserID:   m.AssigneeUserID,
		Notes:            m.Notes,
		Status:           m.Status,
		Justification:    m.Justification,
		AttemptedStoreID: m.AttemptedStoreID,
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

type enrichedRow struct {
	models.Agenda `gorm:"embedded"`
	RegionName    *string `gorm:"column:region_name"`
	StoreName     *string `gorm:"column:store_name"`
}

func (r enrichedRow) toDTO() AgendaDTO {
	dto := FromModel(r.Agenda)
	dto.RegionName = r.RegionName
	dto.StoreName = r.StoreName
	return dto
}

func toDTOs(rows []enrichedRow) []AgendaDTO {
	out := make([]AgendaDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDTO())
	}
	return out
}
