package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chemlit-extractor/config"
	"chemlit-extractor/models"
	"chemlit-extractor/providers/crossref"
	"chemlit-extractor/services"
	"chemlit-extractor/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	articlesRegisteredCounter prometheus.Counter
	downloadJobsCounter       prometheus.Counter
)

func init() {
	articlesRegisteredCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "articles_registered_total",
			Help: "Total number of new articles registered in the database.",
		},
	)
	downloadJobsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "download_jobs_submitted_total",
			Help: "Total number of file download jobs submitted.",
		},
	)
	prometheus.MustRegister(articlesRegisteredCounter, downloadJobsCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	store, err := storage.NewStore(db, logging)
	if err != nil {
		logging.Fatal("Store setup failed", zap.Error(err))
	}
	logging.Info("Running database auto-migration...")
	if err := store.Migrate(); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Services
	downloader := services.NewFileDownloader(cfg.DataRootPath, int64(cfg.MaxFileSizeMB)*1024*1024, logging)
	if cfg.S3Enabled() {
		mirror, err := storage.NewS3Mirror(cfg, logging)
		if err != nil {
			logging.Fatal("S3 mirror creation failed", zap.Error(err))
		}
		downloader.Mirror = mirror
		logging.Info("S3 mirroring enabled", zap.String("bucket", cfg.S3Bucket))
	}
	crossrefClient := crossref.NewClient(cfg, logging)
	regService := services.NewRegistrationService(store, crossrefClient, services.NewJournalMapper(), downloader, logging)
	jobs := services.NewDownloadJobs(downloader, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "chemlit-extractor"})
	})

	// Setup Routes
	setupRegisterRoutes(router, regService, logging)
	setupArticleRoutes(router, store, logging)
	setupAuthorRoutes(router, store, logging)
	setupCompoundRoutes(router, db, logging)
	setupFileRoutes(router, store, jobs, logging)
	setupSearchRoutes(router, crossrefClient, logging)
	setupStatsRoutes(router, store, logging)

	// Setup Cron
	if cfg.DownloadRetrySchedule != "" {
		cronScheduler := cron.New()
		cronScheduler.AddFunc(cfg.DownloadRetrySchedule, func() {
			logging.Info("Running scheduled download retry job...")
			count := retryPendingDownloads(store, jobs, cfg.DataRootPath, logging)
			logging.Info("Download retry job completed", zap.Int("jobs_submitted", count))
		})
		cronScheduler.Start()
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// retryPendingDownloads submits a background download job for every article
// that has no PDF stored yet.
func retryPendingDownloads(store *storage.Store, jobs *services.DownloadJobs, dataRoot string, log *zap.Logger) int {
	var articles []models.Article
	if err := store.DB.Where("url <> ''").Find(&articles).Error; err != nil {
		log.Error("Failed to list articles for download retry", zap.Error(err))
		return 0
	}

	count := 0
	for i := range articles {
		if services.NewArticlePaths(dataRoot, articles[i].DOI).HasPDF() {
			continue
		}
		jobs.Submit(&articles[i], nil)
		downloadJobsCounter.Inc()
		count++
	}
	return count
}

// doiParam extracts the DOI from a wildcard route parameter.
func doiParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("doi"), "/")
}

func setupRegisterRoutes(router *gin.Engine, regService *services.RegistrationService, log *zap.Logger) {
	router.POST("/articles/register", func(c *gin.Context) {
		var req services.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'doi' field is required."})
			return
		}

		outcome := regService.Register(req)
		switch outcome.Status {
		case services.StatusSuccess:
			articlesRegisteredCounter.Inc()
			c.JSON(http.StatusCreated, outcome)
		case services.StatusAlreadyExists:
			c.JSON(http.StatusOK, outcome)
		case services.StatusNotFound:
			c.JSON(http.StatusNotFound, outcome)
		default:
			switch outcome.Source {
			case services.SourceValidation:
				c.JSON(http.StatusBadRequest, outcome)
			case services.SourceCrossRef:
				c.JSON(http.StatusBadGateway, outcome)
			default:
				log.Error("Registration failed", zap.String("doi", req.DOI), zap.String("message", outcome.Message))
				c.JSON(http.StatusInternalServerError, outcome)
			}
		}
	})
}

func setupArticleRoutes(router *gin.Engine, store *storage.Store, log *zap.Logger) {
	rg := router.Group("/articles")

	rg.GET("/", func(c *gin.Context) {
		articles, total, err := store.SearchArticles(storage.ArticleSearch{})
		if err != nil {
			log.Error("Database query for all articles failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"articles": articles, "total": total})
	})

	rg.POST("/query", func(c *gin.Context) {
		var req storage.ArticleSearch
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		articles, total, err := store.SearchArticles(req)
		if err != nil {
			log.Error("Database query for articles failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"articles": articles, "total": total})
	})

	// Single-article routes use a wildcard because DOIs contain slashes.
	item := router.Group("/article")

	item.GET("/*doi", func(c *gin.Context) {
		article, err := store.FindArticleByDOI(doiParam(c))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
				return
			}
			log.Error("DB error fetching article", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, article)
	})

	item.PATCH("/*doi", func(c *gin.Context) {
		var updates map[string]interface{}
		if err := c.ShouldBindJSON(&updates); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		article, err := store.UpdateArticleFields(doiParam(c), updates)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
				return
			}
			log.Error("DB error updating article", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update article"})
			return
		}
		c.JSON(http.StatusOK, article)
	})

	item.DELETE("/*doi", func(c *gin.Context) {
		doi := doiParam(c)
		if err := store.DeleteArticleCascading(doi); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
				return
			}
			log.Error("DB error deleting article", zap.String("doi", doi), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete article"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "article deleted", "doi": doi})
	})
}

func setupAuthorRoutes(router *gin.Engine, store *storage.Store, log *zap.Logger) {
	rg := router.Group("/authors")

	rg.GET("/", func(c *gin.Context) {
		query := store.DB.Model(&models.Author{})
		if name := c.Query("last_name"); name != "" {
			query = query.Where("LOWER(last_name) LIKE ?", "%"+strings.ToLower(name)+"%")
		}
		var authors []models.Author
		if err := query.Order("last_name, first_name").Find(&authors).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, authors)
	})

	rg.GET("/:id", func(c *gin.Context) {
		var author models.Author
		if err := store.DB.First(&author, c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "author not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, author)
	})

	rg.POST("/", func(c *gin.Context) {
		var data services.AuthorData
		if err := c.ShouldBindJSON(&data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		data.ORCID = services.NormalizeORCID(data.ORCID)
		author, err := store.FindOrCreateAuthor(data)
		if err != nil {
			log.Error("Failed to create author", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create author"})
			return
		}
		c.JSON(http.StatusCreated, author)
	})
}

func setupCompoundRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/compounds")

	rg.POST("/", func(c *gin.Context) {
		var compound models.Compound
		if err := c.ShouldBindJSON(&compound); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		var article models.Article
		if err := db.Where("doi = ?", strings.ToLower(compound.ArticleDOI)).First(&article).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "referenced article does not exist"})
			return
		}
		compound.ArticleDOI = article.DOI
		if err := db.Create(&compound).Error; err != nil {
			log.Error("Failed to create compound", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create compound"})
			return
		}
		c.JSON(http.StatusCreated, compound)
	})

	rg.GET("/:id", func(c *gin.Context) {
		var compound models.Compound
		if err := db.Preload("Properties").First(&compound, c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "compound not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, compound)
	})

	rg.POST("/query", func(c *gin.Context) {
		var req struct {
			ArticleDOI string `json:"article_doi"`
			Name       string `json:"name"`
			Limit      int    `json:"limit"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Compound{}).Preload("Properties")
		if req.ArticleDOI != "" {
			query = query.Where("article_doi = ?", strings.ToLower(req.ArticleDOI))
		}
		if req.Name != "" {
			query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(req.Name)+"%")
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var compounds []models.Compound
		if err := query.Order("created_at desc").Find(&compounds).Error; err != nil {
			log.Error("Database query for compounds failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, compounds)
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var compound models.Compound
		if err := db.First(&compound, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "compound not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if err := db.Where("compound_id = ?", compound.ID).Delete(&models.CompoundProperty{}).Error; err != nil {
			log.Error("Failed to delete compound properties", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete compound"})
			return
		}
		if err := db.Delete(&compound).Error; err != nil {
			log.Error("Failed to delete compound", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete compound"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "compound deleted"})
	})

	rg.POST("/:id/properties", func(c *gin.Context) {
		var compound models.Compound
		if err := db.First(&compound, c.Param("id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "compound not found"})
			return
		}
		var property models.CompoundProperty
		if err := c.ShouldBindJSON(&property); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		property.CompoundID = compound.ID
		if err := db.Create(&property).Error; err != nil {
			log.Error("Failed to create compound property", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create property"})
			return
		}
		c.JSON(http.StatusCreated, property)
	})
}

func setupFileRoutes(router *gin.Engine, store *storage.Store, jobs *services.DownloadJobs, log *zap.Logger) {
	rg := router.Group("/files")

	// POST - Trigger background file downloads for a registered article
	rg.POST("/download", func(c *gin.Context) {
		var req struct {
			DOI      string             `json:"doi" binding:"required"`
			FileURLs *services.FileURLs `json:"file_urls,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'doi' field is required."})
			return
		}

		article, err := store.FindArticleByDOI(req.DOI)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		status := jobs.Submit(article, req.FileURLs)
		downloadJobsCounter.Inc()
		log.Info("Download job submitted", zap.String("doi", article.DOI))
		c.JSON(http.StatusAccepted, status)
	})

	// GET - Current job status for a DOI
	rg.GET("/status/*doi", func(c *gin.Context) {
		status, ok := jobs.Status(strings.ToLower(doiParam(c)))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no download job for this DOI"})
			return
		}
		c.JSON(http.StatusOK, status)
	})
}

func setupSearchRoutes(router *gin.Engine, client *crossref.Client, log *zap.Logger) {
	// GET - Free-text CrossRef search, useful for finding DOIs to register
	router.GET("/search/crossref", func(c *gin.Context) {
		query := c.Query("query")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		works, err := client.Search(query, limit, offset)
		if err != nil {
			log.Error("CrossRef search failed", zap.String("query", query), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "CrossRef search failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"query": query, "count": len(works), "results": works})
	})
}

func setupStatsRoutes(router *gin.Engine, store *storage.Store, log *zap.Logger) {
	router.GET("/stats", func(c *gin.Context) {
		stats, err := store.GetStats()
		if err != nil {
			log.Error("Failed to compute stats", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, stats)
	})
}
