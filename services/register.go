package services

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chemlit-extractor/models"
	"chemlit-extractor/providers/crossref"
)

// RegistrationStatus is the overall result of a registration attempt.
type RegistrationStatus string

const (
	StatusSuccess       RegistrationStatus = "success"
	StatusAlreadyExists RegistrationStatus = "already_exists"
	StatusNotFound      RegistrationStatus = "not_found"
	StatusError         RegistrationStatus = "error"
)

// OperationType describes what actually happened to the article record.
type OperationType string

const (
	OpCreated OperationType = "created"
	OpFetched OperationType = "fetched"
	OpExisted OperationType = "existed"
	OpUpdated OperationType = "updated"
)

// Source names where the outcome originated.
type Source string

const (
	SourceDirect     Source = "direct"
	SourceCrossRef   Source = "crossref"
	SourceDatabase   Source = "database"
	SourceValidation Source = "validation"
)

// MetadataFetcher resolves a DOI to bibliographic metadata. The CrossRef
// client is the production implementation.
type MetadataFetcher interface {
	FetchByDOI(doi string) (*crossref.Work, error)
}

// ArticleStore is the subset of the persistence layer registration needs.
type ArticleStore interface {
	FindArticleByDOI(doi string) (*models.Article, error)
	CreateArticleWithAuthors(data ArticleData, authors []AuthorData) (*models.Article, error)
}

// StoreNotFound matches the storage layer's not-found sentinel without an
// import cycle. It is set by the storage package's consumer (main).
var StoreNotFound = errors.New("record not found")

// RegisterRequest is the single entry point payload. Either FetchMetadata is
// set and the DOI alone drives registration, or Article (plus Authors)
// carries the metadata directly.
type RegisterRequest struct {
	DOI           string       `json:"doi" binding:"required"`
	FetchMetadata bool         `json:"fetch_metadata"`
	Article       *ArticleData `json:"article,omitempty"`
	Authors       []AuthorData `json:"authors,omitempty"`
	DownloadFiles bool         `json:"download_files"`
	FileURLs      *FileURLs    `json:"file_urls,omitempty"`
}

// RegistrationOutcome reports what happened, from where, and the resulting
// record. Downloads are best effort and never change the status.
type RegistrationOutcome struct {
	Status    RegistrationStatus `json:"status"`
	Operation OperationType      `json:"operation"`
	Source    Source             `json:"source"`
	Message   string             `json:"message"`
	Article   *models.Article    `json:"article,omitempty"`
	Downloads *DownloadStatus    `json:"downloads,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// RegistrationService orchestrates DOI validation, metadata acquisition,
// journal backfill, atomic persistence and post-commit file downloads.
type RegistrationService struct {
	Store      ArticleStore
	Fetcher    MetadataFetcher
	Journals   *JournalMapper
	Downloader *FileDownloader
	Logger     *zap.Logger
}

// NewRegistrationService wires the orchestrator.
func NewRegistrationService(store ArticleStore, fetcher MetadataFetcher, journals *JournalMapper, downloader *FileDownloader, logger *zap.Logger) *RegistrationService {
	return &RegistrationService{
		Store:      store,
		Fetcher:    fetcher,
		Journals:   journals,
		Downloader: downloader,
		Logger:     logger,
	}
}

// Register runs the full registration flow for one article.
func (s *RegistrationService) Register(req RegisterRequest) *RegistrationOutcome {
	doi, err := NormalizeDOI(req.DOI)
	if err != nil {
		return &RegistrationOutcome{
			Status:    StatusError,
			Operation: OpFetched,
			Source:    SourceValidation,
			Message:   fmt.Sprintf("Invalid DOI %q: %v", req.DOI, err),
		}
	}

	if existing, err := s.Store.FindArticleByDOI(doi); err == nil {
		return s.alreadyExists(existing, req)
	} else if !errors.Is(err, StoreNotFound) {
		return &RegistrationOutcome{
			Status:    StatusError,
			Operation: OpFetched,
			Source:    SourceDatabase,
			Message:   fmt.Sprintf("Database lookup failed: %v", err),
		}
	}

	data, authors, source, outcome := s.acquireMetadata(doi, req)
	if outcome != nil {
		return outcome
	}

	op := OpCreated
	if source == SourceCrossRef {
		op = OpFetched
	}

	article, err := s.Store.CreateArticleWithAuthors(data, authors)
	if err != nil {
		// Another request may have won the race for the same DOI.
		if existing, findErr := s.Store.FindArticleByDOI(doi); findErr == nil {
			s.Logger.Info("Concurrent registration detected", zap.String("doi", doi))
			return s.alreadyExists(existing, req)
		}
		return &RegistrationOutcome{
			Status:    StatusError,
			Operation: op,
			Source:    SourceDatabase,
			Message:   fmt.Sprintf("Failed to store article: %v", err),
		}
	}

	outcome = &RegistrationOutcome{
		Status:    StatusSuccess,
		Operation: op,
		Source:    source,
		Article:   article,
		Message:   operationMessage(op),
	}
	s.runDownloads(outcome, article, req)
	return outcome
}

// operationMessage is the human-readable phrase for each operation type.
// runDownloads appends the file-download summary behind it.
func operationMessage(op OperationType) string {
	switch op {
	case OpFetched:
		return "Article fetched from CrossRef and created"
	case OpExisted:
		return "Article already exists"
	case OpUpdated:
		return "Article updated successfully"
	default:
		return "Article created successfully"
	}
}

// acquireMetadata returns the article data either from CrossRef or from the
// request body. A non-nil outcome short-circuits registration.
func (s *RegistrationService) acquireMetadata(doi string, req RegisterRequest) (ArticleData, []AuthorData, Source, *RegistrationOutcome) {
	if req.FetchMetadata {
		work, err := s.Fetcher.FetchByDOI(doi)
		if err != nil {
			if errors.Is(err, crossref.ErrNotFound) {
				return ArticleData{}, nil, SourceCrossRef, &RegistrationOutcome{
					Status:    StatusNotFound,
					Operation: OpFetched,
					Source:    SourceCrossRef,
					Message:   fmt.Sprintf("DOI %s not found in CrossRef", doi),
				}
			}
			return ArticleData{}, nil, SourceCrossRef, &RegistrationOutcome{
				Status:    StatusError,
				Operation: OpFetched,
				Source:    SourceCrossRef,
				Message:   fmt.Sprintf("CrossRef request failed: %v", err),
			}
		}
		data, authors := ConvertWork(work, doi)
		s.backfillJournal(&data)
		return data, authors, SourceCrossRef, nil
	}

	if req.Article == nil {
		return ArticleData{}, nil, SourceDirect, &RegistrationOutcome{
			Status:    StatusError,
			Operation: OpCreated,
			Source:    SourceValidation,
			Message:   "Article data is required when fetch_metadata is false",
		}
	}
	// Direct data is used as supplied; only the DOI is normalized and the
	// title presence is validated here.
	data := *req.Article
	data.DOI = doi
	if strings.TrimSpace(data.Title) == "" {
		return ArticleData{}, nil, SourceDirect, &RegistrationOutcome{
			Status:    StatusError,
			Operation: OpCreated,
			Source:    SourceValidation,
			Message:   "Article title is required when fetch_metadata is false",
		}
	}
	authors := make([]AuthorData, len(req.Authors))
	for i, a := range req.Authors {
		a.ORCID = NormalizeORCID(a.ORCID)
		authors[i] = a
	}
	return data, authors, SourceDirect, nil
}

// backfillJournal resolves journal and publisher from the DOI rules when the
// fetched journal is absent or the "Unknown Title" placeholder. A genuine
// journal name is never overwritten.
func (s *RegistrationService) backfillJournal(data *ArticleData) {
	if s.Journals == nil {
		return
	}
	if data.Journal != "" && data.Journal != UnknownTitle {
		return
	}
	info, ok := s.Journals.Lookup(data.DOI)
	if !ok {
		return
	}
	data.Journal = info.FullName
	if data.Publisher == "" {
		data.Publisher = info.Publisher
	}
}

// alreadyExists builds the outcome for a DOI that is already registered.
// Requested downloads still run so missing files can be fetched later.
func (s *RegistrationService) alreadyExists(article *models.Article, req RegisterRequest) *RegistrationOutcome {
	outcome := &RegistrationOutcome{
		Status:    StatusAlreadyExists,
		Operation: OpExisted,
		Source:    SourceDatabase,
		Article:   article,
		Message:   operationMessage(OpExisted),
	}
	s.runDownloads(outcome, article, req)
	return outcome
}

// runDownloads performs post-commit file acquisition. Failures become
// warnings, never errors.
func (s *RegistrationService) runDownloads(outcome *RegistrationOutcome, article *models.Article, req RegisterRequest) {
	if !req.DownloadFiles || s.Downloader == nil {
		return
	}

	var status *DownloadStatus
	if req.FileURLs != nil {
		status = s.Downloader.DownloadFromURLs(article.DOI, *req.FileURLs)
	} else {
		status = s.Downloader.AutoDiscover(article)
	}
	outcome.Downloads = status

	for _, r := range status.Results {
		if !r.Success {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("download of %s failed: %s", r.URL, r.Error))
		}
	}

	if status.Succeeded > 0 {
		outcome.Message += fmt.Sprintf(". %d files downloaded successfully", status.Succeeded)
	} else if status.Requested > 0 {
		outcome.Message += ". File downloads were attempted but failed"
	}
}
