package services

import (
	"regexp"
	"strings"

	"chemlit-extractor/providers/crossref"
)

// UnknownTitle is the placeholder used when CrossRef returns no title. The
// journal mapper also treats it as "missing" when deciding whether to
// backfill.
const UnknownTitle = "Unknown Title"

// ArticleData is the normalized article payload handed to the store.
type ArticleData struct {
	DOI       string `json:"doi" binding:"required"`
	Title     string `json:"title" binding:"required"`
	Journal   string `json:"journal"`
	Year      *int   `json:"year"`
	Volume    string `json:"volume"`
	Issue     string `json:"issue"`
	Pages     string `json:"pages"`
	Abstract  string `json:"abstract"`
	URL       string `json:"url"`
	Publisher string `json:"publisher"`
}

// AuthorData is the normalized author payload handed to the store.
type AuthorData struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	ORCID     string `json:"orcid"`
	Email     string `json:"email"`
}

// markupTags matches JATS and any other angle-bracket markup embedded in
// abstracts, e.g. <jats:p>, </jats:sub>, <i>.
var markupTags = regexp.MustCompile(`</?[^<>]+>`)

// CleanAbstract strips markup tags from an abstract and trims whitespace. An
// empty input stays empty; it is never turned into a placeholder.
func CleanAbstract(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(markupTags.ReplaceAllString(raw, ""))
}

// orcidPrefixes are removed so that only the bare identifier is stored.
var orcidPrefixes = []string{"https://orcid.org/", "http://orcid.org/"}

// NormalizeORCID strips any orcid.org URL prefix from the identifier.
func NormalizeORCID(raw string) string {
	orcid := strings.TrimSpace(raw)
	for _, prefix := range orcidPrefixes {
		orcid = strings.ReplaceAll(orcid, prefix, "")
	}
	return orcid
}

// extractYear walks the work's date fields in priority order and returns the
// first usable year. Priority: published, published-online, issued,
// published-print, created. Only the first component of the first date-parts
// entry is used.
func extractYear(work *crossref.Work) *int {
	for _, d := range []*crossref.WorkDate{
		work.Published,
		work.PublishedOnline,
		work.Issued,
		work.PublishedPrint,
		work.Created,
	} {
		if y := d.Year(); y != 0 {
			return &y
		}
	}
	return nil
}

// ConvertWork normalizes a raw CrossRef work into article and author payloads.
// The DOI argument must already be normalized; the raw record's own DOI field
// is not trusted for identity. The function is deterministic and does not
// consult the journal mapper; backfilling is the orchestrator's job.
func ConvertWork(work *crossref.Work, doi string) (ArticleData, []AuthorData) {
	article := ArticleData{
		DOI:       doi,
		Title:     UnknownTitle,
		Volume:    work.Volume,
		Issue:     work.Issue,
		Pages:     work.Page,
		Abstract:  CleanAbstract(work.Abstract),
		URL:       work.URL,
		Publisher: work.Publisher,
		Year:      extractYear(work),
	}

	if len(work.Title) > 0 && work.Title[0] != "" {
		article.Title = work.Title[0]
	}
	if len(work.ContainerTitle) > 0 {
		article.Journal = work.ContainerTitle[0]
	}

	authors := make([]AuthorData, 0, len(work.Author))
	for _, a := range work.Author {
		first := strings.TrimSpace(a.Given)
		if first == "" {
			first = "Unknown"
		}
		last := strings.TrimSpace(a.Family)
		if last == "" {
			last = "Unknown"
		}
		authors = append(authors, AuthorData{
			FirstName: first,
			LastName:  last,
			ORCID:     NormalizeORCID(a.ORCID),
		})
	}
	return article, authors
}
