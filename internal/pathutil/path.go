// Package pathutil provides helpers for slash-separated archive entry names.
package pathutil

import (
	"math"
	"strings"
)

// Base returns the last element of a slash-separated path.
// If path is empty or ".", it returns ".".
func Base(path string) string {
	if path == "" || path == "." {
		return "."
	}
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Parent returns the directory holding path, or "." for top-level names.
func Parent(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return "."
}

// ValidEntryName reports whether name can be stored as a file entry name:
// non-empty, relative, without a trailing slash or NUL bytes and short
// enough for the 16-bit length field.
func ValidEntryName(name string) bool {
	return name != "" &&
		name[0] != '/' &&
		!strings.HasSuffix(name, "/") &&
		strings.IndexByte(name, 0) < 0 &&
		len(name) <= math.MaxUint16
}
