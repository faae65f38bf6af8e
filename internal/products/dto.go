package products

import (
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
)

// ProductDTO is the wire shape of a product.
type ProductDTO struct {
	ID        int64     `json:"product_id"`
	Name      string    `json:"name"`
	Brand     *string   `json:"brand"`
	IsValid   bool      `json:"is_valid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidityResult reports a cascade: the product row and how many of its
// price rows changed.
type ValidityResult struct {
	Product       ProductDTO `json:"product"`
	PricesUpdated int64      `json:"prices_updated"`
}

// ListFilter narrows List; a nil Valid returns every product.
type ListFilter struct {
	Valid *bool
}

// FromModel maps a product row to its DTO.
func FromModel(m models.Product) ProductDTO {
	return ProductDTO{
		ID:        m.ID,
		Name:      m.Name,
		Brand:     m.Brand,
		IsValid:   m.IsValid,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
