package services

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"chemlit-extractor/models"
)

// Mirror uploads a locally stored file to remote storage. Implementations
// must be safe for concurrent use.
type Mirror interface {
	UploadFile(localPath, key string) error
}

// FileResult is the outcome of one attempted download.
type FileResult struct {
	URL      string   `json:"url"`
	Kind     FileKind `json:"kind"`
	Filename string   `json:"filename,omitempty"`
	Size     int64    `json:"size,omitempty"`
	Success  bool     `json:"success"`
	Error    string   `json:"error,omitempty"`
}

// DownloadStatus summarizes a batch of downloads for one article.
type DownloadStatus struct {
	DOI       string       `json:"doi"`
	Requested int          `json:"requested"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []FileResult `json:"results,omitempty"`
}

// FileURLs carries explicit download URLs grouped by kind.
type FileURLs struct {
	PDF           []string `json:"pdf_urls,omitempty"`
	HTML          []string `json:"html_urls,omitempty"`
	Supplementary []string `json:"supplementary_urls,omitempty"`
}

// FileDownloader fetches article files over HTTP and stores them below the
// data root. Failures are per file; one bad URL never aborts the batch.
type FileDownloader struct {
	DataRoot string
	MaxBytes int64
	Logger   *zap.Logger
	Mirror   Mirror

	client *http.Client
}

// NewFileDownloader builds a downloader with a sane HTTP timeout.
func NewFileDownloader(dataRoot string, maxBytes int64, logger *zap.Logger) *FileDownloader {
	return &FileDownloader{
		DataRoot: dataRoot,
		MaxBytes: maxBytes,
		Logger:   logger,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// DownloadFromURLs fetches every explicitly given URL. Each file is handled
// independently and the summary reports per-file outcomes.
func (d *FileDownloader) DownloadFromURLs(doi string, urls FileURLs) *DownloadStatus {
	status := &DownloadStatus{DOI: doi}
	paths := NewArticlePaths(d.DataRoot, doi)

	batches := []struct {
		kind FileKind
		urls []string
	}{
		{KindPDF, urls.PDF},
		{KindHTML, urls.HTML},
		{KindSupplementary, urls.Supplementary},
	}
	for _, batch := range batches {
		for _, u := range batch.urls {
			status.add(d.downloadOne(paths, batch.kind, u))
		}
	}
	return status
}

// AutoDiscover derives candidate file URLs from the article's landing page
// using publisher specific patterns and tries to fetch them.
func (d *FileDownloader) AutoDiscover(article *models.Article) *DownloadStatus {
	status := &DownloadStatus{DOI: article.DOI}
	if article.URL == "" {
		return status
	}
	paths := NewArticlePaths(d.DataRoot, article.DOI)

	if pdfURL := DerivePDFURL(article.DOI, article.URL); pdfURL != "" {
		status.add(d.downloadOne(paths, KindPDF, pdfURL))
	}
	status.add(d.downloadOne(paths, KindHTML, article.URL))
	return status
}

func (s *DownloadStatus) add(r FileResult) {
	s.Requested++
	if r.Success {
		s.Succeeded++
	} else {
		s.Failed++
	}
	s.Results = append(s.Results, r)
}

// DerivePDFURL guesses the direct PDF URL for an article landing page. It
// tries publisher specific rules first, then generic URL rewrites, and the
// doi.org resolver as a last resort. An empty string means no better URL
// than the landing page itself could be derived.
func DerivePDFURL(doi, articleURL string) string {
	lower := strings.ToLower(articleURL)

	var derived string
	switch {
	case strings.Contains(lower, "pubs.rsc.org"):
		// RSC serves PDFs under a fixed path keyed by the DOI suffix.
		if idx := strings.LastIndex(doi, "/"); idx >= 0 && idx < len(doi)-1 {
			derived = "https://pubs.rsc.org/en/content/articlepdf/" + doi[idx+1:]
		}
	case strings.Contains(lower, "pubs.acs.org"), strings.Contains(lower, "onlinelibrary.wiley.com"):
		derived = strings.Replace(articleURL, "/abs/", "/pdf/", 1)
	case strings.Contains(lower, "sciencedirect.com"), strings.Contains(lower, "elsevier.com"):
		if idx := strings.Index(lower, "/pii/"); idx >= 0 {
			pii := articleURL[idx+len("/pii/"):]
			if end := strings.IndexAny(pii, "/?#"); end >= 0 {
				pii = pii[:end]
			}
			if pii != "" {
				derived = "https://api.elsevier.com/content/article/pii/" + pii
			}
		}
	case strings.Contains(lower, "link.springer.com"):
		derived = strings.Replace(articleURL, ".html", ".pdf", 1)
	}

	if derived == "" {
		derived = genericPDFRewrite(articleURL)
	}
	if derived == "" && doi != "" {
		derived = "https://doi.org/" + doi
	}
	if derived == articleURL {
		return ""
	}
	return derived
}

// genericPDFRewrite applies publisher agnostic URL transformations.
func genericPDFRewrite(articleURL string) string {
	rewrites := []struct{ from, to string }{
		{"/abs/", "/pdf/"},
		{"/abstract/", "/pdf/"},
		{"/full/", "/pdf/"},
		{"/html/", "/pdf/"},
		{".html", ".pdf"},
	}
	for _, r := range rewrites {
		if strings.Contains(articleURL, r.from) {
			return strings.Replace(articleURL, r.from, r.to, 1)
		}
	}
	return ""
}

// downloadOne streams one URL to disk. Oversized downloads are aborted and
// the partial file removed.
func (d *FileDownloader) downloadOne(paths ArticlePaths, kind FileKind, rawURL string) FileResult {
	result := FileResult{URL: rawURL, Kind: kind}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		result.Error = "only http and https URLs are supported"
		return result
	}

	filename := d.filenameFor(kind, parsed)
	if filename == "" {
		result.Error = fmt.Sprintf("file type not allowed for %s", kind)
		return result
	}

	if err := paths.Ensure(); err != nil {
		result.Error = err.Error()
		return result
	}

	resp, err := d.client.Get(rawURL)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return result
	}

	target := filepath.Join(paths.ForKind(kind), filename)
	out, err := os.Create(target)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	written, err := io.Copy(out, io.LimitReader(resp.Body, d.MaxBytes+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > d.MaxBytes {
		err = fmt.Errorf("file exceeds size limit of %d bytes", d.MaxBytes)
	}
	if err != nil {
		os.Remove(target)
		result.Error = err.Error()
		d.Logger.Warn("Download failed",
			zap.String("url", rawURL),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return result
	}

	result.Filename = filename
	result.Size = written
	result.Success = true
	d.Logger.Info("File downloaded",
		zap.String("url", rawURL),
		zap.String("file", target),
		zap.Int64("bytes", written))

	if d.Mirror != nil {
		key := filepath.ToSlash(filepath.Join(filepath.Base(paths.Root), string(kind), filename))
		if err := d.Mirror.UploadFile(target, key); err != nil {
			d.Logger.Warn("Mirroring to object storage failed",
				zap.String("file", target),
				zap.Error(err))
		}
	}
	return result
}

// filenameFor derives a safe local filename from the URL path. When the URL
// has no usable extension, PDF and HTML downloads fall back to a default
// name; other kinds are rejected.
func (d *FileDownloader) filenameFor(kind FileKind, u *url.URL) string {
	name := SafeFilename(filepath.Base(u.Path))
	if ExtensionAllowed(kind, name) {
		return name
	}
	switch kind {
	case KindPDF:
		return name + ".pdf"
	case KindHTML:
		return name + ".html"
	}
	return ""
}
