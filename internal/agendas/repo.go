package agendas

import (
	"context"
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	"github.com/radarprecios/radarprecios-backend/pkg/enums"
	"github.com/radarprecios/radarprecios-backend/pkg/types"
	"gorm.io/gorm"
)

// Repository persists agenda items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.Agenda) error
	CreateBatch(ctx context.Context, items []models.Agenda) error
	FindByID(ctx context.Context, id int64) (*models.Agenda, error)
	FindEnriched(ctx context.Context, id int64) (*AgendaDTO, error)
	Update(ctx context.Context, id int64, fields map[string]any) (int64, error)
	Justify(ctx context.Context, id int64, input JustifyInput, at time.Time) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	List(ctx context.Context, filter ListFilter) ([]AgendaDTO, error)
	LatestOpenOn(ctx context.Context, userID int64, day types.Date) (*AgendaDTO, error)
	Between(ctx context.Context, userID int64, from, to types.Date) ([]AgendaDTO, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an agenda repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.Agenda) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) CreateBatch(ctx context.Context, items []models.Agenda) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Agenda, error) {
	var item models.Agenda
	if err := r.db.WithContext(ctx).First(&item, "agenda_id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindEnriched(ctx context.Context, id int64) (*AgendaDTO, error) {
	var rows []enrichedRow
	if err := r.enriched(ctx).Where("a.agenda_id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	dto := rows[0].toDTO()
	return &dto, nil
}

// Update applies an already allow-listed column set.
func (r *repository) Update(ctx context.Context, id int64, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Agenda{}).
		Where("agenda_id = ?", id).
		Updates(fields)
	return res.RowsAffected, res.Error
}

// Justify flips a visit that is not completed to no_ejecutado. A nil
// attempted store keeps whatever was recorded before.
func (r *repository) Justify(ctx context.Context, id int64, input JustifyInput, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Agenda{}).
		Where("agenda_id = ? AND status <> ?", id, enums.AgendaStatusCompleted).
		Updates(map[string]any{
			"status":             enums.AgendaStatusNotExecuted,
			"justification":      input.Justification,
			"attempted_store_id": gorm.Expr("COALESCE(?, attempted_store_id)", input.AttemptedStoreID),
			"updated_at":         at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) Delete(ctx context.Context, id int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("agenda_id = ?", id).Delete(&models.Agenda{})
	return res.RowsAffected, res.Error
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]AgendaDTO, error) {
	query := r.enriched(ctx)
	if filter.Date != nil {
		query = query.Where("a.visit_date = ?", *filter.Date)
	}
	if filter.AssigneeUserID != nil {
		query = query.Where("a.assignee_user_id = ?", *filter.AssigneeUserID)
	}
	if filter.RegionID != nil {
		query = query.Where("a.region_id = ?", *filter.RegionID)
	}
	if filter.StoreID != nil {
		query = query.Where("a.store_id = ?", *filter.StoreID)
	}
	if filter.Status != nil {
		query = query.Where("a.status = ?", *filter.Status)
	}

	var rows []enrichedRow
	if err := query.Order("a.visit_date DESC, a.created_at DESC, a.agenda_id DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toDTOs(rows), nil
}

// LatestOpenOn returns the most recently created pending or started visit of
// the user on day.
func (r *repository) LatestOpenOn(ctx context.Context, userID int64, day types.Date) (*AgendaDTO, error) {
	var rows []enrichedRow
	if err := r.enriched(ctx).
		Where("a.assignee_user_id = ? AND a.visit_date = ?", userID, day).
		Where("a.status IN ?", []enums.AgendaStatus{enums.AgendaStatusPending, enums.AgendaStatusStarted}).
		Order("a.created_at DESC, a.agenda_id DESC").
		Limit(1).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	dto := rows[0].toDTO()
	return &dto, nil
}

// Between lists the user's visits with from <= date <= to.
func (r *repository) Between(ctx context.Context, userID int64, from, to types.Date) ([]AgendaDTO, error) {
	var rows []enrichedRow
	if err := r.enriched(ctx).
		Where("a.assignee_user_id = ? AND a.visit_date >= ? AND a.visit_date <= ?", userID, from, to).
		Order("a.visit_date ASC, a.created_at ASC, a.agenda_id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toDTOs(rows), nil
}

func (r *repository) enriched(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("agendas AS a").
		Select("a.*, rg.name AS region_name, s.name AS store_name").
		Joins("LEFT JOIN regions rg ON rg.region_id = a.region_id").
		Joins("LEFT JOIN stores s ON s.store_id = a.store_id")
}
