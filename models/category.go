package models

import "time"

type CategoryKind string

const (
	CategoryUsage CategoryKind = "USAGE"
	CategoryType  CategoryKind = "TYPE"
)

// Category is a taxonomy entry: usage categories and type categories each carry a
// two-digit code that becomes part of the equipment code.
type Category struct {
	Kind      CategoryKind `gorm:"size:10;primaryKey" json:"kind" yaml:"kind"`
	Code      string       `gorm:"size:2;primaryKey" json:"code" yaml:"code"`
	Name      string       `gorm:"size:120;not null" json:"name" yaml:"name"`
	CreatedAt time.Time    `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time    `json:"updatedAt" yaml:"-"`
}

func (Category) TableName() string { return "alf_categories" }
