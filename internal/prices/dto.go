package prices

import (
	"io"
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	"github.com/shopspring/decimal"
)

// Key identifies the series that holds at most one current price.
type Key struct {
	ProductID  int64
	StoreID    int64
	CurrencyID int64
}

// PhotoInput is an already validated image that accompanies a submission.
type PhotoInput struct {
	Body        io.Reader
	ContentType string
	Extension   string
}

// RecordInput carries one price submission. A zero CurrencyID selects the
// configured default currency.
type RecordInput struct {
	UserID     int64
	ProductID  int64
	StoreID    int64
	CurrencyID int64
	Amount     *decimal.Decimal
	Quantity   *int
	Photo      *PhotoInput
}

// CurrentFilter narrows ListCurrent; nil fields are ignored.
type CurrentFilter struct {
	ProductID *int64
	StoreID   *int64
	RegionID  *int64
}

// PriceDTO is the wire shape of a ledger row.
type PriceDTO struct {
	ID          int64           `json:"price_id"`
	ProductID   int64           `json:"product_id"`
	StoreID     int64           `json:"store_id"`
	CurrencyID  int64           `json:"currency_id"`
	PriceAmount decimal.Decimal `json:"price_amount"`
	Quantity    *int            `json:"quantity"`
	PhotoURL    *string         `json:"photo_url"`
	UserID      *int64          `json:"user_id"`
	RecordedAt  time.Time       `json:"recorded_at"`
	IsCurrent   bool            `json:"is_current"`
	IsValid     bool            `json:"is_valid"`
}

// HistoryPage is one page of a key's history. NextCursor is empty on the
// last page.
type HistoryPage struct {
	Items      []PriceDTO
	NextCursor string
}

// CurrentPriceDTO is a current price enriched for listings.
type CurrentPriceDTO struct {
	PriceDTO
	ProductName  string  `json:"product_name"`
	ProductBrand *string `json:"product_brand"`
	StoreName    string  `json:"store_name"`
	RegionID     int64   `json:"region_id"`
	CurrencyCode string  `json:"currency_code"`
}

// FromModel maps a price row to its DTO.
func FromModel(m models.Price) PriceDTO {
	return PriceDTO{
		ID:          m.ID,
		ProductID:   m.ProductID,
		StoreID:     m.StoreID,
		CurrencyID:  m.CurrencyID,
		PriceAmount: m.PriceAmount,
		Quantity:    m.Quantity,
		PhotoURL:    m.PhotoURL,
		UserID:      m.UserID,
		RecordedAt:  m.RecordedAt,
		IsCurrent:   m.IsCurrent,
		IsValid:     m.IsValid,
	}
}

type currentRow struct {
	models.Price `gorm:"embedded"`
	ProductName  string  `gorm:"column:product_name"`
	ProductBrand *string `gorm:"column:product_brand"`
	StoreName    string  `gorm:"column:store_name"`
	RegionID     int64   `gorm:"column:region_id"`
	CurrencyCode string  `gorm:"column:currency_code"`
}

func (r currentRow) toDTO() CurrentPriceDTO {
	return CurrentPriceDTO{
		PriceDTO:     FromModel(r.Price),
		ProductName:  r.ProductName,
		ProductBrand: r.ProductBrand,
		StoreName:    r.StoreName,
		RegionID:     r.RegionID,
		CurrencyCode: r.CurrencyCode,
	}
}
