// Package domain contains core business entities and rules.
package domain

import "strings"

// ServerCategory is the category assigned to every quote fetched from the remote collaborator.
const ServerCategory = "Server"

// CategoryAll is the filter value that selects every quote.
const CategoryAll = "all"

// Quote is a text/category pair.
// It has no identifier: two quotes are the same quote when their Text is identical.
type Quote struct {
	// Text is the quotation itself.
	Text string `json:"text"`

	// Category groups quotes for filtering.
	Category string `json:"category"`
}

// NewQuote builds a Quote from raw user input, trimming surrounding whitespace.
// Returns a ValidationError naming the first empty field.
func NewQuote(text, category string) (Quote, error) {
	q := Quote{
		Text:     strings.TrimSpace(text),
		Category: strings.TrimSpace(category),
	}

	if err := q.Validate(); err != nil {
		return Quote{}, err
	}

	return q, nil
}

// Validate checks that both fields are present.
func (q Quote) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return NewValidationError("text", "is required")
	}

	if strings.TrimSpace(q.Category) == "" {
		return NewValidationError("category", "is required")
	}

	return nil
}

// DefaultQuotes returns the quotes a brand new store starts with.
func DefaultQuotes() []Quote {
	return []Quote{
		{Text: "Believe you can and you're halfway there.", Category: "Motivation"},
		{Text: "The only limit to our realization of tomorrow is our doubts of today.", Category: "Inspiration"},
		{Text: "Life is what happens when you're busy making other plans.", Category: "Life"},
	}
}
