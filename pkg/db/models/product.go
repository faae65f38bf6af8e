package models

import "time"

// Product is a monitored item. Invalid products reject new prices and hide
// their existing ones.
type Product struct {
	ID        int64     `gorm:"column:product_id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;not null"`
	Brand     *string   `gorm:"column:brand"`
	IsValid   bool      `gorm:"column:is_valid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
