package mysql

import (
	"strings"
	"time"
)

// createdAtString renders a catalog timestamp the way the search API does.
func createdAtString(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// normalizeFolder strips surrounding slashes so "a/" and "/a" hit the same rows.
func normalizeFolder(s string) string {
	return strings.Trim(strings.TrimSpace(s), "/")
}
