package crossref

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"chemlit-extractor/config"
)

// ErrNotFound is returned when CrossRef has no record for a DOI. It is a
// normal outcome, distinct from transport or decoding failures.
var ErrNotFound = errors.New("crossref: work not found")

// Client fetches work metadata from the CrossRef REST API. All outbound calls
// go through a shared rate limiter. The client never retries on its own.
type Client struct {
	BaseURL   string
	UserAgent string
	Logger    *zap.Logger

	httpClient *http.Client
	limiter    *RateLimiter
}

// NewClient creates a CrossRef client with rate limiting from config.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		BaseURL:    cfg.CrossRefBaseURL,
		UserAgent:  cfg.CrossRefUserAgent,
		Logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    NewRateLimiter(cfg.CrossRefRateLimit, time.Minute),
	}
}

// FetchByDOI fetches a single work record. The DOI must already be normalized
// by the caller. Returns ErrNotFound for a 404 response; any other failure is
// a wrapped transport error.
func (c *Client) FetchByDOI(doi string) (*Work, error) {
	requestURL := fmt.Sprintf("%s/works/%s", c.BaseURL, url.PathEscape(doi))
	log := c.Logger.With(zap.String("doi", doi))
	log.Debug("Fetching work from CrossRef", zap.String("url", requestURL))

	body, err := c.get(requestURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var wr worksResponse
	if err := json.NewDecoder(body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("crossref: decoding response for %s: %w", doi, err)
	}
	if wr.Message.DOI == "" {
		return nil, fmt.Errorf("crossref: response for %s is missing the DOI field", doi)
	}

	log.Debug("CrossRef work fetched", zap.String("title", firstOrEmpty(wr.Message.Title)))
	return &wr.Message, nil
}

// Search runs a free-text query against /works. Records without a DOI are
// skipped; an empty result list is not an error.
func (c *Client) Search(query string, limit, offset int) ([]Work, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 1000 {
		limit = 1000 // CrossRef API cap
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("rows", fmt.Sprintf("%d", limit))
	params.Set("offset", fmt.Sprintf("%d", offset))
	requestURL := fmt.Sprintf("%s/works?%s", c.BaseURL, params.Encode())

	c.Logger.Debug("Searching CrossRef", zap.String("query", query), zap.Int("limit", limit))

	body, err := c.get(requestURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var sr searchResponse
	if err := json.NewDecoder(body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("crossref: decoding search response: %w", err)
	}

	works := make([]Work, 0, len(sr.Message.Items))
	for _, w := range sr.Message.Items {
		if w.DOI == "" {
			continue
		}
		works = append(works, w)
	}
	return works, nil
}

// get performs a rate-limited GET and maps the status code to the error
// taxonomy: 404 → ErrNotFound, other non-2xx → transport error.
func (c *Client) get(requestURL string) (io.ReadCloser, error) {
	c.limiter.Wait()

	req, err := http.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("crossref: building request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crossref: request failed: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("crossref: unexpected status %d from %s", resp.StatusCode, requestURL)
	}
	return resp.Body, nil
}

func firstOrEmpty(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}
