package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price is one observation in the price ledger. Rows are superseded through
// IsCurrent or hidden through IsValid, never deleted.
type Price struct {
	ID          int64           `gorm:"column:price_id;primaryKey;autoIncrement"`
	ProductID   int64           `gorm:"column:product_id;not null"`
	StoreID     int64           `gorm:"column:store_id;not null"`
	CurrencyID  int64           `gorm:"column:currency_id;not null"`
	PriceAmount decimal.Decimal `gorm:"column:price_amount;type:numeric(12,2);not null"`
	Quantity    *int            `gorm:"column:quantity"`
	PhotoURL    *string         `gorm:"column:photo_url"`
	UserID      *int64          `gorm:"column:user_id"`
	RecordedAt  time.Time       `gorm:"column:recorded_at;not null"`
	IsCurrent   bool            `gorm:"column:is_current;not null"`
	IsValid     bool            `gorm:"column:is_valid;not null"`
}

func (Price) TableName() string { return "precios" }
