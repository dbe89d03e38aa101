package services

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidDOI is returned for strings that cannot be normalized to a DOI.
var ErrInvalidDOI = errors.New("invalid DOI format: must start with '10.'")

// doiPrefixes are stripped before validation, first match wins.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeDOI trims, lowercases and strips known URL/scheme prefixes from a
// raw DOI string. The result always starts with "10."; anything else fails
// with ErrInvalidDOI. The function is pure and idempotent.
func NormalizeDOI(raw string) (string, error) {
	doi := strings.ToLower(strings.TrimSpace(raw))

	for _, prefix := range doiPrefixes {
		if strings.HasPrefix(doi, prefix) {
			doi = doi[len(prefix):]
			break
		}
	}

	if !strings.HasPrefix(doi, "10.") {
		return "", ErrInvalidDOI
	}
	return doi, nil
}

var (
	pathUnsafe  = regexp.MustCompile(`[/\\]`)
	fsUnsafe    = regexp.MustCompile(`[<>:"|?*]`)
	underscores = regexp.MustCompile(`_+`)
)

// SanitizeDOIForFilesystem converts a DOI into a directory-safe name: slashes
// become underscores, other unsafe characters are replaced, runs of
// underscores collapse and the result is length-capped.
func SanitizeDOIForFilesystem(doi string) string {
	clean, err := NormalizeDOI(doi)
	if err != nil {
		clean = strings.ToLower(strings.TrimSpace(doi))
	}

	s := pathUnsafe.ReplaceAllString(clean, "_")
	s = fsUnsafe.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")

	if len(s) > 200 {
		s = strings.TrimRight(s[:200], "_")
	}
	return s
}
