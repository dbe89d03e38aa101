package models

import (
	"time"
)

// Author represents a researcher. Authors are shared across articles and are
// deduplicated by ORCID when present, else by the (first_name, last_name) pair.
type Author struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FirstName string `json:"first_name" gorm:"size:100;not null;index:idx_author_name"`
	LastName  string `json:"last_name" gorm:"size:100;not null;index:idx_author_name"`
	// Bare ORCID identifier without any URL prefix.
	ORCID string `json:"orcid,omitempty" gorm:"column:orcid;size:50;index"`
	Email string `json:"email,omitempty" gorm:"size:255"`
}

// TableName sets the explicit table name for GORM.
func (Author) TableName() string {
	return "authors"
}
