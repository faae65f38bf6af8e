package products

import (
	"context"
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists products and the validity flag of their prices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id int64) (*models.Product, error)
	List(ctx context.Context, filter ListFilter) ([]models.Product, error)
	SetValidity(ctx context.Context, id int64, valid bool, at time.Time) (int64, error)
	SetPriceValidity(ctx context.Context, productID int64, valid bool) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to product operations.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("product_id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.Valid != nil {
		query = query.Where("is_valid = ?", *filter.Valid)
	}
	var rows []models.Product
	if err := query.Order("name ASC, product_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SetValidity updates the product row and returns the affected row count.
func (r *repository) SetValidity(ctx context.Context, id int64, valid bool, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_id = ?", id).
		Updates(map[string]any{"is_valid": valid, "updated_at": at})
	return res.RowsAffected, res.Error
}

// SetPriceValidity cascades the flag to every price row of the product.
func (r *repository) SetPriceValidity(ctx context.Context, productID int64, valid bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Price{}).
		Where("product_id = ?", productID).
		Update("is_valid", valid)
	return res.RowsAffected, res.Error
}
