package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chemlit-extractor/config"
	"chemlit-extractor/providers/crossref"
	"chemlit-extractor/services"
	"chemlit-extractor/storage"
)

type stubFetcher struct {
	work *crossref.Work
	err  error
}

func (f *stubFetcher) FetchByDOI(doi string) (*crossref.Work, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.work, nil
}

type testEnv struct {
	router *gin.Engine
	store  *storage.Store
}

func newTestEnv(t *testing.T, fetcher services.MetadataFetcher) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	log := zap.NewNop()
	store, err := storage.NewStore(db, log)
	require.NoError(t, err)
	require.NoError(t, store.Migrate())

	downloader := services.NewFileDownloader(t.TempDir(), 1<<20, log)
	regService := services.NewRegistrationService(store, fetcher, services.NewJournalMapper(), downloader, log)
	jobs := services.NewDownloadJobs(downloader, log)

	router := gin.New()
	setupRegisterRoutes(router, regService, log)
	setupArticleRoutes(router, store, log)
	setupAuthorRoutes(router, store, log)
	setupCompoundRoutes(router, db, log)
	setupFileRoutes(router, store, jobs, log)
	setupStatsRoutes(router, store, log)

	return &testEnv{router: router, store: store}
}

func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func registerBody(doi string) gin.H {
	return gin.H{
		"doi":     doi,
		"article": gin.H{"doi": doi, "title": "Synthesis of Indoles"},
		"authors": []gin.H{{"first_name": "Marie", "last_name": "Curie"}},
	}
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	w := env.do(http.MethodPost, "/articles/register", registerBody("10.1000/api"))
	assert.Equal(t, http.StatusCreated, w.Code)

	var outcome services.RegistrationOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	assert.Equal(t, services.StatusSuccess, outcome.Status)

	// Same DOI again: no second record, 200 instead of 201.
	w = env.do(http.MethodPost, "/articles/register", registerBody("10.1000/api"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterEndpointInvalidDOI(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	w := env.do(http.MethodPost, "/articles/register", registerBody("garbage"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterEndpointCrossRefNotFound(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{err: crossref.ErrNotFound})

	w := env.do(http.MethodPost, "/articles/register", gin.H{
		"doi":            "10.1000/missing",
		"fetch_metadata": true,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArticleLookupWithSlashedDOI(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	env.do(http.MethodPost, "/articles/register", registerBody("10.1039/d5ob00519a"))

	w := env.do(http.MethodGet, "/article/10.1039/d5ob00519a", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var article map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &article))
	assert.Equal(t, "10.1039/d5ob00519a", article["doi"])

	w = env.do(http.MethodGet, "/article/10.1039/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArticleUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	env.do(http.MethodPost, "/articles/register", registerBody("10.1000/lifecycle"))

	w := env.do(http.MethodPatch, "/article/10.1000/lifecycle", gin.H{"title": "Corrected Title"})
	require.Equal(t, http.StatusOK, w.Code)

	var article map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &article))
	assert.Equal(t, "Corrected Title", article["title"])

	w = env.do(http.MethodDelete, "/article/10.1000/lifecycle", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/article/10.1000/lifecycle", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArticleQueryEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	env.do(http.MethodPost, "/articles/register", registerBody("10.1000/q1"))
	env.do(http.MethodPost, "/articles/register", registerBody("10.1000/q2"))

	w := env.do(http.MethodPost, "/articles/query", gin.H{"title": "indoles"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
}

func TestCompoundEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	env.do(http.MethodPost, "/articles/register", registerBody("10.1000/chem"))

	w := env.do(http.MethodPost, "/compounds/", gin.H{
		"article_doi": "10.1000/chem",
		"name":        "curcumin",
		"smiles":      "COC1=CC(=CC(=C1O)OC)C=CC(=O)CC(=O)C=CC2=CC(=C(C=C2)O)OC",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var compound map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &compound))
	id := int(compound["id"].(float64))

	w = env.do(http.MethodPost, fmt.Sprintf("/compounds/%d/properties", id), gin.H{
		"name": "melting_point", "value": "183", "unit": "degC",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodPost, "/compounds/query", gin.H{"article_doi": "10.1000/chem"})
	require.Equal(t, http.StatusOK, w.Code)

	// Compound creation against a missing article must fail.
	w = env.do(http.MethodPost, "/compounds/", gin.H{"article_doi": "10.1000/nope", "name": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFileDownloadEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	env := newTestEnv(t, &stubFetcher{})
	env.do(http.MethodPost, "/articles/register", registerBody("10.1000/files"))

	w := env.do(http.MethodPost, "/files/download", gin.H{
		"doi":       "10.1000/files",
		"file_urls": gin.H{"pdf_urls": []string{srv.URL + "/paper.pdf"}},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		w := env.do(http.MethodGet, "/files/status/10.1000/files", nil)
		if w.Code != http.StatusOK {
			return false
		}
		var status services.JobStatus
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.State == services.JobDone
	}, 5*time.Second, 10*time.Millisecond)

	// Unknown article: 404 before any job is created.
	w = env.do(http.MethodPost, "/files/download", gin.H{"doi": "10.1000/ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	env.do(http.MethodPost, "/articles/register", registerBody("10.1000/stats"))

	w := env.do(http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats storage.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalArticles)
	assert.Equal(t, int64(1), stats.TotalAuthors)
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{APISecretKey: "sekrit"}

	router := gin.New()
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-API-KEY", "sekrit")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Empty key disables the check entirely.
	open := gin.New()
	open.Use(apiKeyAuthMiddleware(&config.Config{}))
	open.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	w = httptest.NewRecorder()
	open.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
