package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// QuotesKey is the persistent entry holding the JSON quote array.
const QuotesKey = "quotes"

// QuoteStore owns the ordered quote list and mirrors it to a KeyValueStore.
//
// Every mutation builds the next list, persists it, and only then swaps it in,
// so a failed write leaves the in-memory list untouched.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes []domain.Quote

	kv     ports.KeyValueStore
	seed   bool
	logger *slog.Logger
}

// QuoteStoreConfig contains the dependencies of a QuoteStore.
type QuoteStoreConfig struct {
	// KV persists the quote list. Required.
	KV ports.KeyValueStore

	// SeedDefaults loads domain.DefaultQuotes when nothing is persisted yet.
	SeedDefaults bool

	Logger *slog.Logger
}

// NewQuoteStore creates an empty store. Call Load to read persisted quotes.
func NewQuoteStore(cfg QuoteStoreConfig) *QuoteStore {
	if cfg.KV == nil {
		panic("app: QuoteStoreConfig.KV is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QuoteStore{
		quotes: []domain.Quote{},
		kv:     cfg.KV,
		seed:   cfg.SeedDefaults,
		logger: logger,
	}
}

// Load replaces the in-memory list with the persisted one.
// A missing entry yields the seed quotes (or nothing when seeding is off).
// A malformed entry returns a ValidationError and leaves the store as it was.
func (s *QuoteStore) Load(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, QuotesKey)

	switch {
	case domain.IsNotFound(err):
		quotes := []domain.Quote{}
		if s.seed {
			quotes = domain.DefaultQuotes()
		}

		s.set(quotes)
		s.logger.InfoContext(ctx, "no persisted quotes, starting fresh",
			slog.Int("seeded", len(quotes)),
		)

		return nil
	case err != nil:
		return fmt.Errorf("reading %s: %w", QuotesKey, err)
	}

	var quotes []domain.Quote
	if err := json.Unmarshal([]byte(raw), &quotes); err != nil {
		return domain.NewValidationError(QuotesKey, "persisted value is not a JSON quote array: "+err.Error())
	}

	if quotes == nil {
		quotes = []domain.Quote{}
	}

	s.set(quotes)
	s.logger.InfoContext(ctx, "loaded quotes", slog.Int("count", len(quotes)))

	return nil
}

// All returns a copy of the ordered list.
func (s *QuoteStore) All() []domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.quotes)
}

// Len returns the number of quotes.
func (s *QuoteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.quotes)
}

// Add validates q and appends it. Duplicate texts are allowed.
func (s *QuoteStore) Add(ctx context.Context, q domain.Quote) error {
	if err := q.Validate(); err != nil {
		return err
	}

	return s.mutate(ctx, func(cur []domain.Quote) []domain.Quote {
		return append(cur, q)
	})
}

// AppendAll appends qs wholesale. Callers validate the batch.
func (s *QuoteStore) AppendAll(ctx context.Context, qs []domain.Quote) error {
	if len(qs) == 0 {
		return nil
	}

	return s.mutate(ctx, func(cur []domain.Quote) []domain.Quote {
		return append(cur, qs...)
	})
}

// Merge reconciles remote into the list under the write lock and persists the result.
// Nothing is written when the merge changes nothing.
func (s *QuoteStore) Merge(ctx context.Context, remote []domain.Quote) (domain.ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := domain.Reconcile(s.quotes, remote)
	if !result.Changed() {
		return result, nil
	}

	if err := s.persist(ctx, result.Quotes); err != nil {
		return domain.ReconcileResult{}, err
	}

	s.quotes = result.Quotes

	return result, nil
}

func (s *QuoteStore) mutate(ctx context.Context, fn func([]domain.Quote) []domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(slices.Clone(s.quotes))

	if err := s.persist(ctx, next); err != nil {
		return err
	}

	s.quotes = next

	return nil
}

// persist must be called with mu held.
func (s *QuoteStore) persist(ctx context.Context, quotes []domain.Quote) error {
	data, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("encoding quotes: %w", err)
	}

	if err := s.kv.Set(ctx, QuotesKey, string(data)); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist quotes",
			slog.Int("count", len(quotes)),
			slog.Any("error", err),
		)

		return fmt.Errorf("persisting quotes: %w", err)
	}

	return nil
}

func (s *QuoteStore) set(quotes []domain.Quote) {
	s.mu.Lock()
	s.quotes = quotes
	s.mu.Unlock()
}
