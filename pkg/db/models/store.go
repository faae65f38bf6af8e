package models

// Store is a retail location where prices are observed.
type Store struct {
	ID       int64   `gorm:"column:store_id;primaryKey;autoIncrement"`
	RegionID int64   `gorm:"column:region_id;not null"`
	Name     string  `gorm:"column:name;not null"`
	Address  *string `gorm:"column:address"`
}

func (Store) TableName() string { return "stores" }
