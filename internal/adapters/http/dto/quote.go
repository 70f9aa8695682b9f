package dto

import (
	"time"

	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// AddQuoteRequest is the body of POST /api/v1/quotes.
type AddQuoteRequest struct {
	Text     string `json:"text"     validate:"required,notblank,max=1000"`
	Category string `json:"category" validate:"required,notblank,max=100"`
}

// ListQuotesRequest holds the query parameters of GET /api/v1/quotes.
// An empty Category falls back to the saved filter.
type ListQuotesRequest struct {
	PaginationRequest

	Category string `form:"category" validate:"omitempty,max=100"`
}

// QuoteResponse is the HTTP representation of a quote.
type QuoteResponse struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// NewQuoteResponse converts a domain Quote to its HTTP representation.
func NewQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{Text: q.Text, Category: q.Category}
}

// NewQuoteResponses converts quotes preserving order. Never returns nil.
func NewQuoteResponses(quotes []domain.Quote) []QuoteResponse {
	out := make([]QuoteResponse, len(quotes))
	for i, q := range quotes {
		out[i] = NewQuoteResponse(q)
	}

	return out
}

// CategoriesResponse lists the distinct categories in first-seen order.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// FilterRequest is the body of PUT /api/v1/filter. Empty selects all.
type FilterRequest struct {
	Category string `json:"category" validate:"max=100"`
}

// FilterResponse reports the saved category filter.
type FilterResponse struct {
	Category string `json:"category"`
}

// ImportResponse reports the outcome of an import.
type ImportResponse struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
}

// SyncResponse reports the outcome of an on-demand sync run.
type SyncResponse struct {
	Fetched   int       `json:"fetched"`
	Conflicts int       `json:"conflicts"`
	Added     int       `json:"added"`
	Total     int       `json:"total"`
	SyncedAt  time.Time `json:"syncedAt"`
}

// NewSyncResponse converts an app.SyncReport.
func NewSyncResponse(r app.SyncReport) SyncResponse {
	return SyncResponse{
		Fetched:   r.Fetched,
		Conflicts: r.Conflicts,
		Added:     r.Added,
		Total:     r.Total,
		SyncedAt:  r.SyncedAt,
	}
}
