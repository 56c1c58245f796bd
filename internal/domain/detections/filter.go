package detections

// DateCondition is the date part of a filter selection.
//
// No dates means no restriction, one date is an exact match, and two or
// more dates select the closed range between the earliest and the latest
// selected date. Dates inside the range that were not selected still match.
type DateCondition struct {
	any      bool
	from, to Date
}

// NewDateCondition builds the date predicate for a selection.
func NewDateCondition(selected []Date) DateCondition {
	if len(selected) == 0 {
		return DateCondition{any: true}
	}
	lo, hi := selected[0], selected[0]
	for _, d := range selected[1:] {
		if d.Before(lo) {
			lo = d
		}
		if d.After(hi) {
			hi = d
		}
	}
	return DateCondition{from: lo, to: hi}
}

// Match reports whether d satisfies the condition.
func (c DateCondition) Match(d Date) bool {
	if c.any {
		return true
	}
	return !d.Before(c.from) && !d.After(c.to)
}

// Filter returns the records whose category is selected and whose date
// satisfies the date selection, preserving input order. An empty category
// selection matches nothing.
func Filter(records []Record, categories []string, dates []Date) []Record {
	out := make([]Record, 0)
	if len(categories) == 0 {
		return out
	}
	selected := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		selected[c] = struct{}{}
	}
	cond := NewDateCondition(dates)
	for _, r := range records {
		if _, ok := selected[r.Category]; !ok {
			continue
		}
		if !cond.Match(r.Date) {
			continue
		}
		out = append(out, r)
	}
	return out
}
