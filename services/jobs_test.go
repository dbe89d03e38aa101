package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chemlit-extractor/models"
)

func waitForJob(t *testing.T, jobs *DownloadJobs, doi string) JobStatus {
	t.Helper()
	var status JobStatus
	require.Eventually(t, func() bool {
		s, ok := jobs.Status(doi)
		if !ok {
			return false
		}
		status = s
		return s.State == JobDone || s.State == JobFailed
	}, 5*time.Second, 10*time.Millisecond)
	return status
}

func TestDownloadJobsLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	jobs := NewDownloadJobs(newTestDownloader(t, 1<<20), zap.NewNop())
	article := &models.Article{DOI: "10.1000/test"}

	snapshot := jobs.Submit(article, &FileURLs{PDF: []string{srv.URL + "/paper.pdf"}})
	assert.Equal(t, "10.1000/test", snapshot.DOI)
	assert.Contains(t, []JobState{JobQueued, JobRunning}, snapshot.State)

	status := waitForJob(t, jobs, "10.1000/test")
	assert.Equal(t, JobDone, status.State)
	require.NotNil(t, status.Result)
	assert.Equal(t, 1, status.Result.Succeeded)
	assert.NotNil(t, status.Finished)
}

func TestDownloadJobsFailedWhenNothingSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	jobs := NewDownloadJobs(newTestDownloader(t, 1<<20), zap.NewNop())
	article := &models.Article{DOI: "10.1000/broken"}

	jobs.Submit(article, &FileURLs{PDF: []string{srv.URL + "/paper.pdf"}})
	status := waitForJob(t, jobs, "10.1000/broken")

	assert.Equal(t, JobFailed, status.State)
	require.NotNil(t, status.Result)
	assert.Equal(t, 1, status.Result.Failed)
}

func TestDownloadJobsStatusUnknownDOI(t *testing.T) {
	jobs := NewDownloadJobs(newTestDownloader(t, 1<<20), zap.NewNop())
	_, ok := jobs.Status("10.1000/never-submitted")
	assert.False(t, ok)
}
