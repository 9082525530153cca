package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadStopwords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stopwords.txt")
	require.NoError(t, os.WriteFile(path, []byte("brand\n\n# comment\n  widget  \n"), 0o644))

	words, err := loadStopwords(path)
	require.NoError(t, err)
	require.Equal(t, []string{"brand", "widget"}, words)
}

func TestLoadStopwordsEmptyPath(t *testing.T) {
	t.Parallel()

	words, err := loadStopwords("")
	require.NoError(t, err)
	require.Nil(t, words)
}

func TestLoadStopwordsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := loadStopwords(filepath.Join(t.TempDir(), "absent.txt"))
	require.ErrorContains(t, err, "read stopwords file")
}
