package models

type Currency struct {
	ID     int64  `gorm:"column:currency_id;primaryKey;autoIncrement"`
	Code   string `gorm:"column:code;not null;uniqueIndex"`
	Symbol string `gorm:"column:symbol;not null"`
}

func (Currency) TableName() string { return "currencies" }
