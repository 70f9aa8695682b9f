// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter for anything that blocks
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrUnavailable, etc.)
package ports

import (
	"context"
	"io"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// QuoteSource is the remote collaborator that quotes are reconciled against.
//
// Key considerations:
//   - Handle timeouts via context deadline
//   - Map external errors to domain errors
//   - Assign domain.ServerCategory to every fetched quote
type QuoteSource interface {
	// FetchQuotes returns at most limit remote quotes in server order.
	// A limit <= 0 returns everything the server sent.
	// Returns domain.ErrUnavailable if the service is unreachable.
	FetchQuotes(ctx context.Context, limit int) ([]domain.Quote, error)

	// PushQuote publishes a locally added quote to the remote collaborator.
	PushQuote(ctx context.Context, quote domain.Quote) error
}

// KeyValueStore is a string-keyed persistent store.
// It stands in for browser local and session storage.
type KeyValueStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key.
	// Does not return an error if the key does not exist.
	Delete(ctx context.Context, key string) error
}

// Renderer projects quotes onto a display surface.
type Renderer interface {
	// ContentType is the media type of the rendered output.
	ContentType() string

	// Render writes quotes to w in order.
	Render(w io.Writer, quotes []domain.Quote) error
}

// SyncOutcome labels how a sync run ended.
type SyncOutcome string

const (
	SyncOutcomeMerged    SyncOutcome = "merged"
	SyncOutcomeUnchanged SyncOutcome = "unchanged"
	SyncOutcomeFailed    SyncOutcome = "failed"
)

// SyncMetrics records reconciliation results.
type SyncMetrics interface {
	RecordSync(outcome SyncOutcome, conflicts, added int)
}
