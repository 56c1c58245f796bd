package detections

import (
	"math"
	"sort"
)

// Aggregate counts records per category. Order: count desc, then category asc.
// Categories without records never appear.
func Aggregate(records []Record) []CategoryCount {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Category]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Options lists the values offered by the filter controls.
type Options struct {
	Categories []string `json:"categories"`
	Dates      []Date   `json:"dates"`
}

// FilterOptions returns the sorted distinct categories and dates present in records.
func FilterOptions(records []Record) Options {
	cats := make(map[string]struct{})
	dates := make(map[Date]struct{})
	for _, r := range records {
		cats[r.Category] = struct{}{}
		dates[r.Date] = struct{}{}
	}
	opts := Options{
		Categories: make([]string, 0, len(cats)),
		Dates:      make([]Date, 0, len(dates)),
	}
	for c := range cats {
		opts.Categories = append(opts.Categories, c)
	}
	for d := range dates {
		opts.Dates = append(opts.Dates, d)
	}
	sort.Strings(opts.Categories)
	sort.Slice(opts.Dates, func(i, j int) bool { return opts.Dates[i].Before(opts.Dates[j]) })
	return opts
}

// Page is one slice of the gallery.
type Page struct {
	Data       []Record `json:"data"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	Total      int      `json:"totalItems"`
	TotalPages int      `json:"totalPages"`
}

// Paginate slices records for the gallery. page starts at 1; out-of-range
// pages return an empty Data with the totals still filled in.
func Paginate(records []Record, page, pageSize int) Page {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 30
	}
	total := len(records)
	p := Page{
		Data:       []Record{},
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}
	start := (page - 1) * pageSize
	if start >= total {
		return p
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	p.Data = records[start:end]
	return p
}
