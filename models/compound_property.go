package models

import (
	"time"
)

// CompoundProperty is a measured or reported property of a compound, e.g. a
// melting point or an NMR shift. Properties are owned by their compound.
type CompoundProperty struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompoundID uint   `json:"compound_id" gorm:"not null;index"`
	Name       string `json:"name" gorm:"size:255;not null"`
	Value      string `json:"value" gorm:"size:1000;not null"`
	Unit       string `json:"unit,omitempty" gorm:"size:50"`
}

// TableName sets the explicit table name for GORM.
func (CompoundProperty) TableName() string {
	return "compound_properties"
}
