// Package storage holds the blob stores that keep raw uploaded CSV files.
package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrNotFound is wrapped by Get when the object does not exist.
var ErrNotFound = errors.New("object not found")

// Locator builds "<owner>/<unixmillis>-<filename>". Both parts are reduced
// to a single safe path segment.
func Locator(owner, filename string, at time.Time) string {
	return fmt.Sprintf("%s/%d-%s", segment(owner, "anonymous"), at.UnixMilli(), segment(filename, "upload.csv"))
}

// ValidLocator rejects locators that could escape the store root.
func ValidLocator(loc string) bool {
	if loc == "" || strings.HasPrefix(loc, "/") || strings.Contains(loc, `\`) {
		return false
	}
	for _, part := range strings.Split(loc, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return path.Clean(loc) == loc
}

func segment(s, fallback string) string {
	s = strings.ReplaceAll(s, `\`, "/")
	s = path.Base(strings.TrimSpace(s))
	if s == "." || s == "/" || s == ".." || s == "" {
		return fallback
	}
	return s
}
