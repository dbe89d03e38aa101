package storage

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"chemlit-extractor/models"
	"chemlit-extractor/services"
)

var (
	// ErrNotFound is returned when a record does not exist. It is shared with
	// the services layer so callers there can match it without importing storage.
	ErrNotFound = services.StoreNotFound
	// ErrDuplicate is returned when an article with the same DOI already exists.
	ErrDuplicate = errors.New("article with this DOI already exists")
)

// Store is the relational persistence layer for articles, authors, compounds
// and their properties.
type Store struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewStore wires the store and registers the author join table so that
// author_order survives GORM's many-to-many handling.
func NewStore(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if err := db.SetupJoinTable(&models.Article{}, "Authors", &models.ArticleAuthor{}); err != nil {
		return nil, fmt.Errorf("setting up article_authors join table: %w", err)
	}
	return &Store{DB: db, Logger: logger}, nil
}

// Migrate creates or updates the schema for all models.
func (s *Store) Migrate() error {
	return s.DB.AutoMigrate(
		&models.Author{},
		&models.Article{},
		&models.ArticleAuthor{},
		&models.Compound{},
		&models.CompoundProperty{},
	)
}

// FindArticleByDOI returns the article with its authors in list order, or
// ErrNotFound.
func (s *Store) FindArticleByDOI(doi string) (*models.Article, error) {
	var article models.Article
	err := s.DB.Where("doi = ?", strings.ToLower(doi)).First(&article).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.loadAuthors(s.DB, &article); err != nil {
		return nil, err
	}
	return &article, nil
}

// loadAuthors fills article.Authors ordered by the join table's author_order.
func (s *Store) loadAuthors(tx *gorm.DB, article *models.Article) error {
	return tx.
		Joins("JOIN article_authors ON article_authors.author_id = authors.id").
		Where("article_authors.article_doi = ?", article.DOI).
		Order("article_authors.author_order").
		Find(&article.Authors).Error
}

// CreateArticleWithAuthors persists an article and its author list as one
// transaction: either everything is committed or nothing is. Existing authors
// are reused (by ORCID, else by name pair); author order is preserved.
func (s *Store) CreateArticleWithAuthors(data services.ArticleData, authors []services.AuthorData) (*models.Article, error) {
	article := &models.Article{
		DOI:       strings.ToLower(data.DOI),
		Title:     data.Title,
		Journal:   data.Journal,
		Year:      data.Year,
		Volume:    data.Volume,
		Issue:     data.Issue,
		Pages:     data.Pages,
		Abstract:  data.Abstract,
		URL:       data.URL,
		Publisher: data.Publisher,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Article{}).Where("doi = ?", article.DOI).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicate
		}

		if err := tx.Create(article).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicate
			}
			return err
		}

		for i, a := range authors {
			author, err := s.findOrCreateAuthor(tx, a)
			if err != nil {
				return err
			}
			link := models.ArticleAuthor{
				ArticleDOI:  article.DOI,
				AuthorID:    author.ID,
				AuthorOrder: i,
			}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
			article.Authors = append(article.Authors, *author)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Article created",
		zap.String("doi", article.DOI),
		zap.Int("authors", len(article.Authors)))
	return article, nil
}

// FindOrCreateAuthor returns an existing author matching the data, creating
// one if necessary. Matching is by ORCID when present, else by name pair.
func (s *Store) FindOrCreateAuthor(data services.AuthorData) (*models.Author, error) {
	return s.findOrCreateAuthor(s.DB, data)
}

func (s *Store) findOrCreateAuthor(tx *gorm.DB, data services.AuthorData) (*models.Author, error) {
	first := strings.TrimSpace(data.FirstName)
	last := strings.TrimSpace(data.LastName)
	if first == "" || last == "" {
		return nil, fmt.Errorf("author requires non-empty first and last name")
	}

	var author models.Author
	if data.ORCID != "" {
		err := tx.Where("orcid = ?", data.ORCID).First(&author).Error
		if err == nil {
			return &author, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	err := tx.Where("first_name = ? AND last_name = ?", first, last).First(&author).Error
	if err == nil {
		// Backfill the ORCID if it arrived later.
		if data.ORCID != "" && author.ORCID == "" {
			author.ORCID = data.ORCID
			if err := tx.Save(&author).Error; err != nil {
				return nil, err
			}
		}
		return &author, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	author = models.Author{
		FirstName: first,
		LastName:  last,
		ORCID:     data.ORCID,
		Email:     data.Email,
	}
	if err := tx.Create(&author).Error; err != nil {
		return nil, err
	}
	return &author, nil
}

// updatableArticleColumns are the columns a partial update may touch. The
// DOI is immutable and everything else is not a caller concern.
var updatableArticleColumns = map[string]bool{
	"title":     true,
	"journal":   true,
	"year":      true,
	"volume":    true,
	"issue":     true,
	"pages":     true,
	"abstract":  true,
	"url":       true,
	"publisher": true,
}

// UpdateArticleFields applies a partial update. Keys outside the updatable
// column set are dropped, never forwarded to SQL.
func (s *Store) UpdateArticleFields(doi string, updates map[string]interface{}) (*models.Article, error) {
	filtered := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if updatableArticleColumns[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return s.FindArticleByDOI(doi)
	}

	res := s.DB.Model(&models.Article{}).Where("doi = ?", strings.ToLower(doi)).Updates(filtered)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.FindArticleByDOI(doi)
}

// DeleteArticleCascading removes an article together with its compounds,
// their properties and its author links. Shared author records are kept.
func (s *Store) DeleteArticleCascading(doi string) error {
	doi = strings.ToLower(doi)
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var article models.Article
		if err := tx.Where("doi = ?", doi).First(&article).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var compoundIDs []uint
		if err := tx.Model(&models.Compound{}).
			Where("article_doi = ?", doi).
			Pluck("id", &compoundIDs).Error; err != nil {
			return err
		}
		if len(compoundIDs) > 0 {
			if err := tx.Where("compound_id IN ?", compoundIDs).
				Delete(&models.CompoundProperty{}).Error; err != nil {
				return err
			}
			if err := tx.Where("article_doi = ?", doi).Delete(&models.Compound{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("article_doi = ?", doi).Delete(&models.ArticleAuthor{}).Error; err != nil {
			return err
		}
		return tx.Delete(&article).Error
	})
}

// ArticleSearch carries the filters and pagination of an article search.
type ArticleSearch struct {
	Title          string `json:"title"`
	Journal        string `json:"journal"`
	Year           *int   `json:"year"`
	AuthorLastName string `json:"author_last_name"`
	Limit          int    `json:"limit"`
	Offset         int    `json:"offset"`
}

// SearchArticles returns matching articles plus the total match count.
func (s *Store) SearchArticles(q ArticleSearch) ([]models.Article, int64, error) {
	query := s.DB.Model(&models.Article{})

	if q.Title != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(q.Title)+"%")
	}
	if q.Journal != "" {
		query = query.Where("LOWER(journal) LIKE ?", "%"+strings.ToLower(q.Journal)+"%")
	}
	if q.Year != nil {
		query = query.Where("year = ?", *q.Year)
	}
	if q.AuthorLastName != "" {
		sub := s.DB.Model(&models.ArticleAuthor{}).
			Select("article_authors.article_doi").
			Joins("JOIN authors ON authors.id = article_authors.author_id").
			Where("LOWER(authors.last_name) LIKE ?", "%"+strings.ToLower(q.AuthorLastName)+"%")
		query = query.Where("articles.doi IN (?)", sub)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var articles []models.Article
	err := query.Order("articles.created_at DESC").Limit(limit).Offset(q.Offset).Find(&articles).Error
	if err != nil {
		return nil, 0, err
	}
	for i := range articles {
		if err := s.loadAuthors(s.DB, &articles[i]); err != nil {
			return nil, 0, err
		}
	}
	return articles, total, nil
}

// Stats summarizes the database content.
type Stats struct {
	TotalArticles   int64 `json:"total_articles"`
	TotalAuthors    int64 `json:"total_authors"`
	TotalCompounds  int64 `json:"total_compounds"`
	TotalProperties int64 `json:"total_properties"`
}

// GetStats counts the main entities.
func (s *Store) GetStats() (*Stats, error) {
	var st Stats
	if err := s.DB.Model(&models.Article{}).Count(&st.TotalArticles).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Author{}).Count(&st.TotalAuthors).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Compound{}).Count(&st.TotalCompounds).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.CompoundProperty{}).Count(&st.TotalProperties).Error; err != nil {
		return nil, err
	}
	return &st, nil
}
