// Package app contains application services that orchestrate use cases.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// Setting keys shared with the persistent and session stores.
const (
	LastFilterKey = "lastFilter"
	LastQuoteKey  = "lastQuote"
)

// QuotePublisher forwards locally added quotes to the remote collaborator.
type QuotePublisher interface {
	Publish(ctx context.Context, quotes []domain.Quote)
}

// QuoteService orchestrates the quote use cases on top of a QuoteStore.
type QuoteService struct {
	store     *QuoteStore
	settings  ports.KeyValueStore
	session   ports.KeyValueStore
	publisher QuotePublisher
	intn      func(n int) int
	logger    *slog.Logger
}

// QuoteServiceConfig contains the dependencies of a QuoteService.
type QuoteServiceConfig struct {
	// Store is required.
	Store *QuoteStore

	// Settings persists lastFilter. Required.
	Settings ports.KeyValueStore

	// Session holds lastQuote for the lifetime of the process. Required.
	Session ports.KeyValueStore

	// Publisher is optional; nil disables pushing added quotes.
	Publisher QuotePublisher

	// Intn picks the random index. Defaults to math/rand/v2.IntN.
	Intn func(n int) int

	Logger *slog.Logger
}

// NewQuoteService creates a new quote service with the provided dependencies.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Store == nil || cfg.Settings == nil || cfg.Session == nil {
		panic("app: QuoteServiceConfig requires Store, Settings and Session")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	intn := cfg.Intn
	if intn == nil {
		intn = rand.IntN
	}

	return &QuoteService{
		store:     cfg.Store,
		settings:  cfg.Settings,
		session:   cfg.Session,
		publisher: cfg.Publisher,
		intn:      intn,
		logger:    logger,
	}
}

// AddQuote trims and validates the input, appends it, and publishes it.
// Invalid input returns a ValidationError and leaves the store unchanged.
func (s *QuoteService) AddQuote(ctx context.Context, text, category string) (domain.Quote, error) {
	q, err := domain.NewQuote(text, category)
	if err != nil {
		return domain.Quote{}, err
	}

	if err := s.store.Add(ctx, q); err != nil {
		return domain.Quote{}, err
	}

	s.logger.InfoContext(ctx, "quote added",
		slog.String("category", q.Category),
		slog.Int("total", s.store.Len()),
	)

	if s.publisher != nil {
		s.publisher.Publish(ctx, []domain.Quote{q})
	}

	return q, nil
}

// RandomQuote picks uniformly among the quotes in category (all when empty)
// and remembers the pick as the last viewed quote.
func (s *QuoteService) RandomQuote(ctx context.Context, category string) (domain.Quote, error) {
	candidates := domain.FilterByCategory(s.store.All(), category)
	if len(candidates) == 0 {
		return domain.Quote{}, domain.NewNotFoundError("quotes", "")
	}

	q := candidates[s.intn(len(candidates))]

	data, err := json.Marshal(q)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("encoding last quote: %w", err)
	}

	if err := s.session.Set(ctx, LastQuoteKey, string(data)); err != nil {
		s.logger.WarnContext(ctx, "failed to remember last quote", slog.Any("error", err))
	}

	return q, nil
}

// LastViewed returns the quote most recently picked by RandomQuote in this session.
func (s *QuoteService) LastViewed(ctx context.Context) (domain.Quote, error) {
	raw, err := s.session.Get(ctx, LastQuoteKey)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Quote{}, domain.NewNotFoundError("last viewed quote", "")
		}

		return domain.Quote{}, err
	}

	var q domain.Quote
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return domain.Quote{}, fmt.Errorf("decoding %s: %w", LastQuoteKey, err)
	}

	return q, nil
}

// ListQuotes returns the quotes in category in store order.
// An empty category falls back to the saved filter.
func (s *QuoteService) ListQuotes(ctx context.Context, category string) ([]domain.Quote, error) {
	category, err := s.ListCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	return domain.FilterByCategory(s.store.All(), category), nil
}

// ListCategory returns the category ListQuotes would filter by: category
// itself, or the saved filter when category is blank.
func (s *QuoteService) ListCategory(ctx context.Context, category string) (string, error) {
	if strings.TrimSpace(category) != "" {
		return category, nil
	}

	return s.Filter(ctx)
}

// Count returns the number of stored quotes.
func (s *QuoteService) Count() int {
	return s.store.Len()
}

// Categories returns the distinct categories in first-seen order.
func (s *QuoteService) Categories(_ context.Context) []string {
	return domain.Categories(s.store.All())
}

// SetFilter persists the selected category. Empty selects all.
func (s *QuoteService) SetFilter(ctx context.Context, category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		category = domain.CategoryAll
	}

	if err := s.settings.Set(ctx, LastFilterKey, category); err != nil {
		return "", fmt.Errorf("saving %s: %w", LastFilterKey, err)
	}

	return category, nil
}

// Filter returns the saved category filter, domain.CategoryAll when none is saved.
func (s *QuoteService) Filter(ctx context.Context) (string, error) {
	category, err := s.settings.Get(ctx, LastFilterKey)

	switch {
	case domain.IsNotFound(err):
		return domain.CategoryAll, nil
	case err != nil:
		return "", fmt.Errorf("reading %s: %w", LastFilterKey, err)
	case category == "":
		return domain.CategoryAll, nil
	}

	return category, nil
}

// Import appends a JSON array of quotes read from r and returns how many were added.
// Malformed JSON or an invalid element returns a ValidationError and changes nothing.
// Imported quotes stay local; only AddQuote publishes.
func (s *QuoteService) Import(ctx context.Context, r io.Reader) (int, error) {
	var quotes []domain.Quote

	dec := json.NewDecoder(r)
	if err := dec.Decode(&quotes); err != nil {
		return 0, domain.NewValidationError("", "invalid JSON file: "+err.Error())
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return 0, domain.NewValidationError("", "invalid JSON file: trailing data after array")
	}

	if quotes == nil {
		return 0, domain.NewValidationError("", "invalid JSON file: expected an array of quotes")
	}

	for i, q := range quotes {
		if err := q.Validate(); err != nil {
			return 0, domain.NewImportError(i, err)
		}
	}

	if err := s.store.AppendAll(ctx, quotes); err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "quotes imported",
		slog.Int("imported", len(quotes)),
		slog.Int("total", s.store.Len()),
	)

	return len(quotes), nil
}

// Export writes the full list as a 2-space indented JSON array.
func (s *QuoteService) Export(_ context.Context, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(s.store.All()); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}

	return nil
}

// ExportGzip writes the Export document gzip-compressed.
func (s *QuoteService) ExportGzip(ctx context.Context, w io.Writer) error {
	zw := gzip.NewWriter(w)

	if err := s.Export(ctx, zw); err != nil {
		_ = zw.Close()

		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing gzip stream: %w", err)
	}

	return nil
}

// Render writes the quotes of category (saved filter when empty) with renderer.
func (s *QuoteService) Render(ctx context.Context, category string, renderer ports.Renderer, w io.Writer) error {
	quotes, err := s.ListQuotes(ctx, category)
	if err != nil {
		return err
	}

	return renderer.Render(w, quotes)
}
