package checkins

import (
	"context"
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	"gorm.io/gorm"
)

// ActiveSessionConstraint is the partial unique index allowing one active
// session per user.
const ActiveSessionConstraint = "ux_checkins_active"

// Repository persists check-in sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UserExists(ctx context.Context, id int64) (bool, error)
	RegionExists(ctx context.Context, id int64) (bool, error)
	StoreExists(ctx context.Context, id int64) (bool, error)
	CloseActiveForUser(ctx context.Context, userID int64, at time.Time) (int64, error)
	Close(ctx context.Context, checkInID, userID int64, at time.Time) (int64, error)
	LatestActiveID(ctx context.Context, userID int64) (int64, error)
	Create(ctx context.Context, session *models.CheckIn) error
	FindEnriched(ctx context.Context, checkInID int64) (*SessionDTO, error)
	FindActiveEnriched(ctx context.Context, userID int64) (*SessionDTO, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a check-in repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) UserExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, &models.User{}, "user_id", id)
}

func (r *repository) RegionExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, &models.Region{}, "region_id", id)
}

func (r *repository) StoreExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, &models.Store{}, "store_id", id)
}

// CloseActiveForUser ends every active session of the user.
func (r *repository) CloseActiveForUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CheckIn{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]any{"is_active": false, "ended_at": at})
	return res.RowsAffected, res.Error
}

// Close ends one session only if it is still active and owned by userID.
func (r *repository) Close(ctx context.Context, checkInID, userID int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CheckIn{}).
		Where("checkin_id = ? AND user_id = ? AND is_active = ?", checkInID, userID, true).
		Updates(map[string]any{"is_active": false, "ended_at": at})
	return res.RowsAffected, res.Error
}

func (r *repository) LatestActiveID(ctx context.Context, userID int64) (int64, error) {
	var session models.CheckIn
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("started_at DESC, checkin_id DESC").
		First(&session).Error; err != nil {
		return 0, err
	}
	return session.ID, nil
}

func (r *repository) Create(ctx context.Context, session *models.CheckIn) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindEnriched(ctx context.Context, checkInID int64) (*SessionDTO, error) {
	return r.findEnriched(ctx, "c.checkin_id = ?", checkInID)
}

func (r *repository) FindActiveEnriched(ctx context.Context, userID int64) (*SessionDTO, error) {
	return r.findEnriched(ctx, "c.user_id = ? AND c.is_active = ?", userID, true)
}

func (r *repository) findEnriched(ctx context.Context, where string, args ...any) (*SessionDTO, error) {
	var rows []enrichedRow
	if err := r.db.WithContext(ctx).
		Table("checkins AS c").
		Select("c.*, rg.name AS region_name, s.name AS store_name").
		Joins("LEFT JOIN regions rg ON rg.region_id = c.region_id").
		Joins("LEFT JOIN stores s ON s.store_id = c.store_id").
		Where(where, args...).
		Order("c.started_at DESC, c.checkin_id DESC").
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

func (r *repository) exists(ctx context.Context, model any, column string, id int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where(column+" = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
