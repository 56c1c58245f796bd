package detections

import (
	"sort"
	"time"
)

// RawAsset adalah snapshot satu media object dari asset source (read-only).
type RawAsset struct {
	Identifier string `json:"public_id"`
	CreatedAt  string `json:"created_at"`
	URL        string `json:"secure_url"`
}

// CategoryMap maps a lowercase tag token to its display label.
type CategoryMap map[string]string

// DefaultCategories is used when the config does not declare any.
func DefaultCategories() CategoryMap {
	return CategoryMap{
		"elephant": "Elephant",
		"cow":      "Cow",
		"deer":     "Deer",
		"car":      "Car",
	}
}

// Label returns the display label for a tag token.
func (m CategoryMap) Label(tag string) (string, bool) {
	label, ok := m[tag]
	return label, ok
}

// Labels returns every display label, sorted.
func (m CategoryMap) Labels() []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	for _, label := range m {
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// HasLabel reports whether label is one of the configured display labels.
func (m CategoryMap) HasLabel(label string) bool {
	for _, l := range m {
		if l == label {
			return true
		}
	}
	return false
}

// Record is a classified detection derived from one RawAsset.
type Record struct {
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Date      Date      `json:"date"`
	URL       string    `json:"url"`
}

func newRecord(category string, ts time.Time, url string) Record {
	return Record{
		Category:  category,
		Timestamp: ts,
		Date:      DateOf(ts),
		URL:       url,
	}
}

// CategoryCount value object for the statistics chart
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}
