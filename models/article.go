package models

import (
	"time"
)

// Article represents a scientific article and its bibliographic metadata.
// The DOI is the identity: two records with the same DOI are the same article.
type Article struct {
	DOI       string    `json:"doi" gorm:"primaryKey;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title     string `json:"title" gorm:"size:1000;not null"`
	Journal   string `json:"journal,omitempty" gorm:"size:255"`
	Year      *int   `json:"year,omitempty"`
	Volume    string `json:"volume,omitempty" gorm:"size:50"`
	Issue     string `json:"issue,omitempty" gorm:"size:50"`
	Pages     string `json:"pages,omitempty" gorm:"size:50"`
	Abstract  string `json:"abstract,omitempty" gorm:"type:text"`
	URL       string `json:"url,omitempty" gorm:"size:500"`
	Publisher string `json:"publisher,omitempty" gorm:"size:255"`

	// Authors are shared across articles; order is carried by the join table.
	Authors []Author `json:"authors,omitempty" gorm:"many2many:article_authors"`

	// Compounds are owned children and are deleted with the article.
	Compounds []Compound `json:"compounds,omitempty" gorm:"foreignKey:ArticleDOI;constraint:OnDelete:CASCADE"`
}

// TableName sets the explicit table name for GORM.
func (Article) TableName() string {
	return "articles"
}

// ArticleAuthor is the association between articles and authors. AuthorOrder
// preserves the position in the author list, which is semantically meaningful.
type ArticleAuthor struct {
	ArticleDOI  string `json:"article_doi" gorm:"primaryKey;size:255"`
	AuthorID    uint   `json:"author_id" gorm:"primaryKey"`
	AuthorOrder int    `json:"author_order" gorm:"not null;default:0"`
}

// TableName sets the explicit table name for GORM.
func (ArticleAuthor) TableName() string {
	return "article_authors"
}
