package models

// Region groups stores for field assignments.
type Region struct {
	ID   int64  `gorm:"column:region_id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;not null"`
}

func (Region) TableName() string { return "regions" }
