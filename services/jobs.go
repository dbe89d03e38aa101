package services

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"chemlit-extractor/models"
)

// JobState is the lifecycle state of a background download job.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// JobStatus is a snapshot of one article's download job.
type JobStatus struct {
	DOI       string          `json:"doi"`
	State     JobState        `json:"state"`
	Submitted time.Time       `json:"submitted"`
	Finished  *time.Time      `json:"finished,omitempty"`
	Result    *DownloadStatus `json:"result,omitempty"`
}

// DownloadJobs runs file downloads in the background, one job per article.
// Submitting again while a job for the same DOI is queued or running is a
// no-op; resubmitting after it finished starts a fresh job.
type DownloadJobs struct {
	downloader *FileDownloader
	logger     *zap.Logger

	mu   sync.Mutex
	jobs map[string]*JobStatus
}

// NewDownloadJobs builds the job manager.
func NewDownloadJobs(downloader *FileDownloader, logger *zap.Logger) *DownloadJobs {
	return &DownloadJobs{
		downloader: downloader,
		logger:     logger,
		jobs:       make(map[string]*JobStatus),
	}
}

// Submit queues a download job for the article and returns its status
// snapshot. The actual work happens on a background goroutine.
func (j *DownloadJobs) Submit(article *models.Article, urls *FileURLs) JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	if existing, ok := j.jobs[article.DOI]; ok {
		if existing.State == JobQueued || existing.State == JobRunning {
			return *existing
		}
	}

	status := &JobStatus{
		DOI:       article.DOI,
		State:     JobQueued,
		Submitted: time.Now(),
	}
	j.jobs[article.DOI] = status

	go j.run(article, urls)
	return *status
}

// Status returns the current snapshot for a DOI.
func (j *DownloadJobs) Status(doi string) (JobStatus, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	status, ok := j.jobs[doi]
	if !ok {
		return JobStatus{}, false
	}
	return *status, true
}

func (j *DownloadJobs) run(article *models.Article, urls *FileURLs) {
	j.setState(article.DOI, JobRunning, nil)

	var result *DownloadStatus
	if urls != nil {
		result = j.downloader.DownloadFromURLs(article.DOI, *urls)
	} else {
		result = j.downloader.AutoDiscover(article)
	}

	state := JobDone
	if result.Requested > 0 && result.Succeeded == 0 {
		state = JobFailed
	}
	j.setState(article.DOI, state, result)
	j.logger.Info("Download job finished",
		zap.String("doi", article.DOI),
		zap.String("state", string(state)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
}

func (j *DownloadJobs) setState(doi string, state JobState, result *DownloadStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	status, ok := j.jobs[doi]
	if !ok {
		return
	}
	status.State = state
	if result != nil {
		status.Result = result
	}
	if state == JobDone || state == JobFailed {
		now := time.Now()
		status.Finished = &now
	}
}
