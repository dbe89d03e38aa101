package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFilename(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name", "paper.pdf", "paper.pdf"},
		{"strips path", "../../etc/passwd", "passwd"},
		{"strips windows path", `C:\files\paper.pdf`, "paper.pdf"},
		{"replaces unsafe chars", `fig<1>:"draft".png`, "fig_1_draft_.png"},
		{"spaces to underscores", "supporting info.pdf", "supporting_info.pdf"},
		{"collapses underscores", "a___b.pdf", "a_b.pdf"},
		{"empty becomes placeholder", "", "unnamed"},
		{"only path separators", "///", "unnamed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SafeFilename(tc.input))
		})
	}
}

func TestSafeFilenameTruncationKeepsExtension(t *testing.T) {
	long := strings.Repeat("a", 150) + ".pdf"
	got := SafeFilename(long)
	assert.Len(t, got, 100)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestExtensionAllowed(t *testing.T) {
	assert.True(t, ExtensionAllowed(KindPDF, "paper.pdf"))
	assert.True(t, ExtensionAllowed(KindPDF, "paper.PDF"))
	assert.False(t, ExtensionAllowed(KindPDF, "paper.exe"))
	assert.False(t, ExtensionAllowed(KindPDF, "paper"))

	assert.True(t, ExtensionAllowed(KindHTML, "index.html"))
	assert.True(t, ExtensionAllowed(KindHTML, "index.htm"))
	assert.True(t, ExtensionAllowed(KindHTML, "fulltext.xml"))
	assert.False(t, ExtensionAllowed(KindHTML, "index.js"))

	assert.True(t, ExtensionAllowed(KindImages, "scheme1.png"))
	assert.True(t, ExtensionAllowed(KindImages, "fig.webp"))
	assert.False(t, ExtensionAllowed(KindImages, "fig.pdf"))

	assert.True(t, ExtensionAllowed(KindSupplementary, "si.pdf"))
	assert.True(t, ExtensionAllowed(KindSupplementary, "data.xlsx"))
	assert.True(t, ExtensionAllowed(KindSupplementary, "structures.cif"))
	assert.True(t, ExtensionAllowed(KindSupplementary, "archive.zip"))
	assert.False(t, ExtensionAllowed(KindSupplementary, "malware.exe"))
}

func TestNewArticlePathsLayout(t *testing.T) {
	paths := NewArticlePaths("/data/articles", "10.1039/d5ob00519a")

	assert.Equal(t, filepath.Join("/data/articles", "10.1039_d5ob00519a"), paths.Root)
	assert.Equal(t, filepath.Join(paths.Root, "pdf"), paths.PDF)
	assert.Equal(t, filepath.Join(paths.Root, "html"), paths.HTML)
	assert.Equal(t, filepath.Join(paths.Root, "supplementary"), paths.Supplementary)
	assert.Equal(t, filepath.Join(paths.Root, "images"), paths.Images)

	assert.Equal(t, paths.PDF, paths.ForKind(KindPDF))
	assert.Equal(t, paths.Images, paths.ForKind(KindImages))
}

func TestArticlePathsEnsureAndHasPDF(t *testing.T) {
	paths := NewArticlePaths(t.TempDir(), "10.1000/test")
	require.NoError(t, paths.Ensure())

	for _, dir := range []string{paths.PDF, paths.HTML, paths.Supplementary, paths.Images} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	assert.False(t, paths.HasPDF())
	require.NoError(t, os.WriteFile(filepath.Join(paths.PDF, "paper.pdf"), []byte("%PDF"), 0o644))
	assert.True(t, paths.HasPDF())
}
