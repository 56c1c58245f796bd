package detections

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are tried in order after a trailing "Z" is stripped.
// Fractional seconds are accepted by time.Parse without being in the layout.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// TagToken extracts the classification token from an asset identifier:
// last "/" segment, up to the first "_", lowercased.
func TagToken(identifier string) string {
	name := identifier
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '_'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// ParseTimestamp parses an ISO 8601 created_at value. A trailing "Z" is
// dropped and no timezone conversion happens: the wall clock is kept and
// reported in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), "Z")
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		y, mo, d := t.Date()
		h, mi, sec := t.Clock()
		return time.Date(y, mo, d, h, mi, sec, t.Nanosecond(), time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, raw)
}

// Classify turns one asset into a Record. It returns an error wrapping
// ErrUnrecognizedTag or ErrMalformedTimestamp when the asset is excluded.
func Classify(asset RawAsset, categories CategoryMap) (Record, error) {
	tag := TagToken(asset.Identifier)
	label, ok := categories.Label(tag)
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrUnrecognizedTag, tag)
	}
	ts, err := ParseTimestamp(asset.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("asset %s: %w", asset.Identifier, err)
	}
	return newRecord(label, ts, asset.URL), nil
}

// Skipped describes an asset dropped because its timestamp did not parse.
type Skipped struct {
	Identifier string `json:"public_id"`
	Reason     string `json:"reason"`
}

// Classification is the outcome of classifying a whole asset listing.
type Classification struct {
	Records      []Record  `json:"records"`
	Unrecognized int       `json:"unrecognized"`
	Skipped      []Skipped `json:"skipped,omitempty"`
}

// ClassifyAll classifies assets in input order. Unknown tags are counted,
// malformed timestamps are skipped and reported.
func ClassifyAll(assets []RawAsset, categories CategoryMap) Classification {
	out := Classification{Records: make([]Record, 0, len(assets))}
	for _, a := range assets {
		rec, err := Classify(a, categories)
		switch {
		case err == nil:
			out.Records = append(out.Records, rec)
		case errors.Is(err, ErrUnrecognizedTag):
			out.Unrecognized++
		default:
			out.Skipped = append(out.Skipped, Skipped{Identifier: a.Identifier, Reason: err.Error()})
		}
	}
	return out
}
