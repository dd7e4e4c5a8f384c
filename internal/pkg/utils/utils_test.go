package utils

import (
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	appFS := afero.NewMemMapFs()
	fs = appFS
	defer func() { fs = afero.NewOsFs() }()

	afero.WriteFile(appFS, "src/a", []byte("file"), 0644)
	appFS.MkdirAll("src/dir", 0755)

	assert.True(t, FileExists("src/a"))
	assert.False(t, FileExists("src/b"))
	assert.False(t, FileExists("src/dir"), "directories do not count")
}

func TestDedupeStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, DedupeStrings([]string{"a", "b", "a", "c", "b"}))
	assert.Equal(t, []string{}, DedupeStrings(nil))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`A sunny <beach> at dawn?`, "A sunny beach at dawn"},
		{"slash/back\\slash", "slashbackslash"},
		{"  spaced   out  ", "spaced out"},
		{"trailing dots...", "trailing dots"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}

func TestCutString(t *testing.T) {
	assert.Equal(t, "abc", CutString("abc", 10))
	assert.Equal(t, "ab", CutString("abcd", 2))
	assert.Equal(t, "", CutString("abc", 0))
	assert.Equal(t, "", CutString("abc", -1))

	// the cut never lands inside a multibyte rune
	s := "日本語"
	for max := 0; max <= len(s); max++ {
		out := CutString(s, max)
		assert.True(t, utf8.ValidString(out), "max=%d", max)
		assert.LessOrEqual(t, len(out), max)
	}
	assert.Equal(t, "日本", CutString("日本語", 7))
}

func TestEnsureUniquePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "title.jpg")

	got, err := EnsureUniquePath(path, 50)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	got, err = EnsureUniquePath(path, 50)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "title (1).jpg"), got)

	require.NoError(t, os.WriteFile(got, []byte("x"), 0644))
	got, err = EnsureUniquePath(path, 50)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "title (2).jpg"), got)
}

func TestEnsureUniquePathExhausted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t (1).jpg"), []byte("x"), 0644))

	_, err := EnsureUniquePath(path, 1)
	assert.Error(t, err)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))

	require.NoError(t, CopyFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
