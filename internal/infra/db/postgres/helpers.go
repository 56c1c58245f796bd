package postgres

import (
	"strings"
	"time"
)

func createdAtString(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func normalizeFolder(s string) string {
	return strings.Trim(strings.TrimSpace(s), "/")
}
