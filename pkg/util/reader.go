// Package util provides utility functions for file operations.
package util

import (
	"compress/gzip"
	"io"
	"strings"
)

// IsGzipFile returns true if the file path indicates gzip compression.
func IsGzipFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// StripCompression removes compression extensions (.gz) from a path.
func StripCompression(path string) string {
	if IsGzipFile(path) {
		return path[:len(path)-3]
	}
	return path
}

// MaybeDecompress wraps r in a gzip reader when the path says so. The
// returned close function is a no-op for plain files; the caller still owns
// the underlying reader.
func MaybeDecompress(r io.Reader, path string) (io.Reader, func() error, error) {
	if !IsGzipFile(path) {
		return r, func() error { return nil }, nil
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return gz, gz.Close, nil
}
