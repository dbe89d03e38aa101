package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileKind is the category a downloaded file is stored under.
type FileKind string

const (
	KindPDF           FileKind = "pdf"
	KindHTML          FileKind = "html"
	KindSupplementary FileKind = "supplementary"
	KindImages        FileKind = "images"
)

// allowedExtensions maps each file kind to its accepted extensions.
var allowedExtensions = map[FileKind][]string{
	KindPDF:  {".pdf"},
	KindHTML: {".html", ".htm", ".xml"},
	KindImages: {
		".png", ".jpg", ".jpeg", ".gif", ".tiff", ".tif", ".bmp", ".svg", ".webp",
	},
	KindSupplementary: {
		".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
		".txt", ".csv", ".zip", ".tar", ".gz", ".rar", ".7z",
		".cif", ".xml", ".json",
		".png", ".jpg", ".jpeg", ".gif", ".tiff", ".tif", ".bmp", ".svg", ".webp",
	},
}

// ExtensionAllowed reports whether the filename's extension is acceptable
// for the given kind.
func ExtensionAllowed(kind FileKind, filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	for _, allowed := range allowedExtensions[kind] {
		if ext == allowed {
			return true
		}
	}
	return false
}

const maxFilenameLen = 100

// SafeFilename strips any path components from name and replaces characters
// that are unsafe on common filesystems. Long names are truncated to
// maxFilenameLen while keeping the extension intact.
func SafeFilename(name string) string {
	// Take the last path segment regardless of separator style.
	if idx := strings.LastIndexAny(name, "/\\"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "unnamed"
	}

	name = fsUnsafe.ReplaceAllString(name, "_")
	name = strings.ReplaceAll(name, " ", "_")
	name = underscores.ReplaceAllString(name, "_")

	if len(name) <= maxFilenameLen {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) >= maxFilenameLen {
		return name[:maxFilenameLen]
	}
	base := name[:len(name)-len(ext)]
	return base[:maxFilenameLen-len(ext)] + ext
}

// ArticlePaths resolves the on-disk directory layout for one article.
type ArticlePaths struct {
	Root          string
	PDF           string
	HTML          string
	Supplementary string
	Images        string
}

// ForKind returns the directory for a file kind.
func (p ArticlePaths) ForKind(kind FileKind) string {
	switch kind {
	case KindPDF:
		return p.PDF
	case KindHTML:
		return p.HTML
	case KindSupplementary:
		return p.Supplementary
	default:
		return p.Images
	}
}

// NewArticlePaths maps a DOI to its directory layout below dataRoot. The DOI
// is sanitized so it is usable as a single path segment.
func NewArticlePaths(dataRoot, doi string) ArticlePaths {
	root := filepath.Join(dataRoot, SanitizeDOIForFilesystem(doi))
	return ArticlePaths{
		Root:          root,
		PDF:           filepath.Join(root, "pdf"),
		HTML:          filepath.Join(root, "html"),
		Supplementary: filepath.Join(root, "supplementary"),
		Images:        filepath.Join(root, "images"),
	}
}

// HasPDF reports whether at least one PDF has been stored for the article.
func (p ArticlePaths) HasPDF() bool {
	entries, err := os.ReadDir(p.PDF)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			return true
		}
	}
	return false
}

// Ensure creates the whole directory layout.
func (p ArticlePaths) Ensure() error {
	for _, dir := range []string{p.PDF, p.HTML, p.Supplementary, p.Images} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
