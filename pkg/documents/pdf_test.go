package documents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	t.Run("should strip NUL bytes and whitespace", func(t *testing.T) {
		text, err := Clean("  Điều 1.\x00 Phạm vi\x00 \n")
		require.NoError(t, err)
		assert.Equal(t, "Điều 1. Phạm vi", text)
	})

	t.Run("should reject empty text", func(t *testing.T) {
		_, err := Clean("\x00 \n\t")
		assert.ErrorIs(t, err, ErrEmptyText)
	})
}

func TestExtractPDF(t *testing.T) {
	t.Run("should reject non-pdf bytes", func(t *testing.T) {
		_, err := ExtractPDF([]byte("not a pdf at all"))
		assert.Error(t, err)
	})
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("should read text files", func(t *testing.T) {
		path := filepath.Join(dir, "luat.txt")
		require.NoError(t, os.WriteFile(path, []byte("Luật Hôn nhân và Gia đình\n"), 0o644))

		text, err := ExtractFile(path)
		require.NoError(t, err)
		assert.Equal(t, "Luật Hôn nhân và Gia đình", text)
	})

	t.Run("should reject unsupported types", func(t *testing.T) {
		path := filepath.Join(dir, "luat.docx")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		_, err := ExtractFile(path)
		assert.Error(t, err)
		assert.False(t, Supported(path))
		assert.True(t, Supported("a.PDF"))
	})
}

func TestExtract(t *testing.T) {
	t.Run("should read markdown uploads as text", func(t *testing.T) {
		text, err := Extract("ghi-chu.md", []byte("# Ghi chú\n"))
		require.NoError(t, err)
		assert.Equal(t, "# Ghi chú", text)
	})

	t.Run("should parse unknown extensions as pdf", func(t *testing.T) {
		_, err := Extract("upload", []byte("plain bytes"))
		assert.Error(t, err)
	})
}
