package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidCursor covers undecodable cursors and cursors issued for another category.
var ErrInvalidCursor = errors.New("invalid cursor")

// PaginationRequest is embedded in list requests.
type PaginationRequest struct {
	// Cursor is an opaque NextCursor from a previous page.
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit"  validate:"omitempty,gte=1,lte=100"`
}

// GetLimit returns the page size with the default applied and clamped to MaxLimit.
func (p *PaginationRequest) GetLimit() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	default:
		return p.Limit
	}
}

// PageCursor marks where the next page of a listing starts. Listings are
// filtered by category, so a cursor is only valid for the category it was
// issued under.
type PageCursor struct {
	Category string `json:"c"`
	Offset   int    `json:"o"`
}

func (pc PageCursor) Encode() string {
	raw, _ := json.Marshal(pc)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes an Encode result.
func ParseCursor(s string) (PageCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return PageCursor{}, ErrInvalidCursor
	}

	var pc PageCursor
	if err := json.Unmarshal(raw, &pc); err != nil || pc.Offset < 0 {
		return PageCursor{}, ErrInvalidCursor
	}

	return pc, nil
}

// PaginatedResponse is one page of a listing.
type PaginatedResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// Paginate cuts the page req asks for out of all, the full listing for
// category. A cursor past the end yields an empty last page.
func Paginate[T any](all []T, req *PaginationRequest, category string) (*PaginatedResponse[T], error) {
	start := 0

	if req.Cursor != "" {
		pc, err := ParseCursor(req.Cursor)
		if err != nil {
			return nil, err
		}

		if pc.Category != category {
			return nil, ErrInvalidCursor
		}

		start = min(pc.Offset, len(all))
	}

	end := min(start+req.GetLimit(), len(all))

	page := &PaginatedResponse[T]{Items: make([]T, 0, end-start), HasMore: end < len(all)}
	page.Items = append(page.Items, all[start:end]...)

	if page.HasMore {
		page.NextCursor = PageCursor{Category: category, Offset: end}.Encode()
	}

	return page, nil
}
