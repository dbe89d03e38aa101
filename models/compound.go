package models

import (
	"time"
)

// Compound represents a chemical compound extracted from an article. Compounds
// are owned by exactly one article and deleted with it.
type Compound struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ArticleDOI string `json:"article_doi" gorm:"size:255;not null;index"`
	Name       string `json:"name" gorm:"size:255;not null"`
	SMILES     string `json:"smiles,omitempty" gorm:"size:1000"`
	Formula    string `json:"formula,omitempty" gorm:"size:255"`
	// How the structure was obtained, e.g. "decimer", "name_to_structure", "manual".
	ExtractionMethod string `json:"extraction_method,omitempty" gorm:"size:50"`

	Properties []CompoundProperty `json:"properties,omitempty" gorm:"foreignKey:CompoundID;constraint:OnDelete:CASCADE"`
}

// TableName sets the explicit table name for GORM.
func (Compound) TableName() string {
	return "compounds"
}
