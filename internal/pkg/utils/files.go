package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// fs is swapped for a MemMapFs in tests that only need existence semantics
var fs = afero.NewOsFs()

// FileExists checks if a file exists and is not a directory before we
// try using it to prevent further errors
func FileExists(filename string) bool {
	info, err := fs.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CopyFile copies src to dst, creating or truncating dst
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// EnsureUniquePath returns path if it is free, otherwise appends " (N)" to the
// base name. It gives up after maxAttempts collisions.
func EnsureUniquePath(path string, maxAttempts int) (string, error) {
	if !FileExists(path) {
		return path, nil
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := filepath.Base(path)
	base = base[:len(base)-len(ext)]

	for counter := 1; counter <= maxAttempts; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, counter, ext))
		if !FileExists(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no unique name found for %s after %d attempts", path, maxAttempts)
}
