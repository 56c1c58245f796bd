package middleware

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
)

// ErrValidation is wrapped by every query validation failure.
var ErrValidation = errors.New("invalid request")

// ValidationError names the offending parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

const (
	MaxPageSize = 100

	// FilteredParam marks a submitted filter form, so an empty category
	// selection means "none" instead of "all".
	FilteredParam = "filtered"
)

// FilterParams is the parsed filter/pagination selection of a request.
// Categories is nil when the request made no category selection.
type FilterParams struct {
	Categories []string
	Dates      []detections.Date
	Page       int
	PageSize   int
	Refresh    bool
}

// ParseFilterParams validates category, date, page, page_size and refresh.
func ParseFilterParams(q url.Values, categories detections.CategoryMap) (FilterParams, error) {
	var p FilterParams

	cats, err := ValidateCategories(q["category"], categories)
	if err != nil {
		return p, err
	}
	if cats == nil && isTrue(q.Get(FilteredParam)) {
		cats = []string{}
	}
	p.Categories = cats

	if p.Dates, err = ValidateDates(q["date"]); err != nil {
		return p, err
	}
	if p.Page, err = ValidatePage(q.Get("page")); err != nil {
		return p, err
	}
	if p.PageSize, err = ValidatePageSize(q.Get("page_size")); err != nil {
		return p, err
	}
	p.Refresh = isTrue(q.Get("refresh"))
	return p, nil
}

// ValidateCategories accepts repeated or comma separated display labels.
// No values at all returns nil.
func ValidateCategories(values []string, categories detections.CategoryMap) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, c := range strings.Split(v, ",") {
			c = SanitizeString(c)
			if c == "" {
				continue
			}
			if !categories.HasLabel(c) {
				return nil, &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", c)}
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out, nil
}

// ValidateDates parses YYYY-MM-DD values. No values returns nil.
func ValidateDates(values []string) ([]detections.Date, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]detections.Date, 0, len(values))
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			d, err := detections.ParseDate(s)
			if err != nil {
				return nil, &ValidationError{Field: "date", Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
			}
			out = append(out, d)
		}
	}
	return out, nil
}

// ValidatePage: empty means 1, anything below 1 is rejected.
func ValidatePage(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, &ValidationError{Field: "page", Message: "must be a positive integer"}
	}
	return n, nil
}

// ValidatePageSize: empty means 0 (service default), otherwise clamped to [1, MaxPageSize].
func ValidatePageSize(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{Field: "page_size", Message: "must be an integer"}
	}
	return ValidateLimit(n), nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
