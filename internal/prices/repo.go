package prices

import (
	"context"

	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	"github.com/radarprecios/radarprecios-backend/pkg/pagination"
	"gorm.io/gorm"
)

// CurrentPriceConstraint is the partial unique index that keeps one current
// row per key.
const CurrentPriceConstraint = "ux_precios_current"

// Repository persists ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProduct(ctx context.Context, id int64) (*models.Product, error)
	StoreExists(ctx context.Context, id int64) (bool, error)
	CurrencyExists(ctx context.Context, id int64) (bool, error)
	SupersedeCurrent(ctx context.Context, key Key) (int64, error)
	Create(ctx context.Context, price *models.Price) error
	History(ctx context.Context, key Key, after *pagination.Cursor, limit int) ([]models.Price, error)
	ListCurrent(ctx context.Context, filter CurrentFilter) ([]CurrentPriceDTO, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("product_id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) StoreExists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.db, &models.Store{}, "store_id", id)
}

func (r *repository) CurrencyExists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.db, &models.Currency{}, "currency_id", id)
}

// SupersedeCurrent clears the current flag of every row of the key and
// reports how many rows were flipped.
func (r *repository) SupersedeCurrent(ctx context.Context, key Key) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Price{}).
		Where("product_id = ? AND store_id = ? AND currency_id = ? AND is_current = ?",
			key.ProductID, key.StoreID, key.CurrencyID, true).
		Update("is_current", false)
	return res.RowsAffected, res.Error
}

func (r *repository) Create(ctx context.Context, price *models.Price) error {
	return r.db.WithContext(ctx).Create(price).Error
}

// History returns up to limit rows older than after, newest first.
func (r *repository) History(ctx context.Context, key Key, after *pagination.Cursor, limit int) ([]models.Price, error) {
	query := r.db.WithContext(ctx).
		Where("product_id = ? AND store_id = ? AND currency_id = ?", key.ProductID, key.StoreID, key.CurrencyID)
	if after != nil {
		query = query.Where("(recorded_at < ?) OR (recorded_at = ? AND price_id < ?)", after.At, after.At, after.ID)
	}

	var rows []models.Price
	if err := query.
		Order("recorded_at DESC, price_id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListCurrent(ctx context.Context, filter CurrentFilter) ([]CurrentPriceDTO, error) {
	query := r.db.WithContext(ctx).
		Table("precios AS p").
		Select(`p.*, pr.name AS product_name, pr.brand AS product_brand,
			s.name AS store_name, s.region_id AS region_id, c.code AS currency_code`).
		Joins("JOIN products pr ON pr.product_id = p.product_id").
		Joins("JOIN stores s ON s.store_id = p.store_id").
		Joins("JOIN currencies c ON c.currency_id = p.currency_id").
		Where("p.is_current = ? AND p.is_valid = ?", true, true)

	if filter.ProductID != nil {
		query = query.Where("p.product_id = ?", *filter.ProductID)
	}
	if filter.StoreID != nil {
		query = query.Where("p.store_id = ?", *filter.StoreID)
	}
	if filter.RegionID != nil {
		query = query.Where("s.region_id = ?", *filter.RegionID)
	}

	var rows []currentRow
	if err := query.Order("pr.name ASC, s.name ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]CurrentPriceDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDTO())
	}
	return out, nil
}

func exists(ctx context.Context, db *gorm.DB, model any, column string, id int64) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where(column+" = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
