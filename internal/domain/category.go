package domain

import "strings"

// Categories returns the distinct categories of quotes in first-seen order.
func Categories(quotes []Quote) []string {
	seen := make(map[string]struct{}, len(quotes))
	categories := make([]string, 0, len(quotes))

	for _, q := range quotes {
		if _, ok := seen[q.Category]; ok {
			continue
		}

		seen[q.Category] = struct{}{}
		categories = append(categories, q.Category)
	}

	return categories
}

// IsAllCategories reports whether a filter value selects every quote.
func IsAllCategories(category string) bool {
	category = strings.TrimSpace(category)
	return category == "" || category == CategoryAll
}

// FilterByCategory returns the quotes whose category equals category, preserving order.
// An empty category or CategoryAll returns a copy of every quote.
func FilterByCategory(quotes []Quote, category string) []Quote {
	if IsAllCategories(category) {
		out := make([]Quote, len(quotes))
		copy(out, quotes)

		return out
	}

	out := make([]Quote, 0, len(quotes))

	for _, q := range quotes {
		if q.Category == category {
			out = append(out, q)
		}
	}

	return out
}
