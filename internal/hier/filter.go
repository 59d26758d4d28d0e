package hier

import (
	"strings"

	"lattice/internal/items"
)

// Filter selects items from the flat list. Active criteria are ANDed.
type Filter struct {
	// Query matches case-insensitively as a substring of title, notes, or
	// summary (OR across fields). Empty means no text filtering.
	Query string
	// Category, when non-nil, requires exact path equality. Selecting a
	// parent category deliberately does not include its children's items;
	// the tree view's aggregate counts are the hierarchical view.
	Category *string
	// NeedsReview, when true, keeps only items flagged for review.
	NeedsReview bool
}

// Match reports whether a single item passes every active criterion.
func (f Filter) Match(it items.Item) bool {
	if f.Category != nil && it.CategoryPath != *f.Category {
		return false
	}
	if f.NeedsReview && !it.NeedsReview {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(it.Title), q) &&
			!strings.Contains(strings.ToLower(it.Notes), q) &&
			!strings.Contains(strings.ToLower(it.Summary), q) {
			return false
		}
	}
	return true
}

// Apply returns the items passing the filter, in input order.
func (f Filter) Apply(list []items.Item) []items.Item {
	var out []items.Item
	for _, it := range list {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out
}

// Grouped applies the filter and groups survivors by exact category path.
// Buckets left empty by the filter are omitted entirely.
func (f Filter) Grouped(list []items.Item) map[string][]items.Item {
	return GroupByPath(f.Apply(list))
}
