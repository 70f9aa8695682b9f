package acl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

const (
	postsPath = "/posts"

	// pushUserID is the author id attached to published quotes.
	pushUserID = 1
)

var (
	_ ports.QuoteSource   = (*QuoteClient)(nil)
	_ ports.HealthChecker = (*QuoteClient)(nil)
)

// QuoteClientConfig contains configuration for the quote client.
type QuoteClientConfig struct {
	// Client's BaseURL points at the JSON test API.
	Client *clients.Client

	Logger *slog.Logger
}

// QuoteClient reads and publishes quotes through the remote posts resource.
// A post's title is the quote text; every fetched quote is filed under
// domain.ServerCategory.
type QuoteClient struct {
	remote

	logger *slog.Logger
}

// NewQuoteClient creates a new quote client adapter.
// Panics if Client is nil.
func NewQuoteClient(cfg QuoteClientConfig) *QuoteClient {
	if cfg.Client == nil {
		panic("QuoteClient: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QuoteClient{
		remote: newRemote(cfg.Client),
		logger: logger,
	}
}

// postDTO is the wire shape of a post. It never leaves this package.
type postDTO struct {
	ID     int    `json:"id,omitempty"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// FetchQuotes returns the first limit posts as quotes, in server order.
func (c *QuoteClient) FetchQuotes(ctx context.Context, limit int) ([]domain.Quote, error) {
	const operation = "fetch quotes"

	logger := logging.FromContextOr(ctx, c.logger)
	logger.DebugContext(ctx, "fetching remote quotes", slog.Int("limit", limit))

	body, err := c.get(ctx, postsPath, operation)
	if err != nil {
		return nil, err
	}

	posts, err := decode[[]postDTO](body)
	if err != nil {
		return nil, domain.NewUnavailableError(c.service, err.Error())
	}

	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}

	quotes, err := translateAll(posts, translatePost)
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		logger.Log(ctx, logging.LevelTrace, "translated remote post",
			slog.Int("post_id", p.ID),
			slog.Int("user_id", p.UserID))
	}

	return quotes, nil
}

// translatePost maps a post onto a server quote. The title is kept verbatim
// because reconciliation matches on exact text.
func translatePost(p *postDTO) (domain.Quote, error) {
	q := domain.Quote{Text: p.Title, Category: domain.ServerCategory}
	if err := q.Validate(); err != nil {
		return domain.Quote{}, fmt.Errorf("post %d: %w", p.ID, err)
	}

	return q, nil
}

// PushQuote publishes quote as a new post. The remote echoes the post back;
// the echo is read only to confirm it decodes.
func (c *QuoteClient) PushQuote(ctx context.Context, quote domain.Quote) error {
	const operation = "push quote"

	payload, err := json.Marshal(postDTO{
		UserID: pushUserID,
		Title:  quote.Text,
		Body:   quote.Category,
	})
	if err != nil {
		return fmt.Errorf("encoding post: %w", err)
	}

	body, err := c.post(ctx, postsPath, bytes.NewReader(payload), operation)
	if err != nil {
		return err
	}

	created, err := decode[postDTO](body)
	if err != nil {
		return domain.NewUnavailableError(c.service, err.Error())
	}

	logging.FromContextOr(ctx, c.logger).DebugContext(ctx, "quote pushed",
		slog.Int("post_id", created.ID))

	return nil
}

// Name implements ports.HealthChecker.
func (c *QuoteClient) Name() string {
	return c.service
}

// Check reports unhealthy while the circuit breaker is open. It does not call
// the remote service, so readiness probes add no downstream load.
func (c *QuoteClient) Check(_ context.Context) error {
	if state := c.client.CircuitState(); state == clients.StateOpen {
		return domain.NewUnavailableError(c.service, "circuit breaker "+state.String())
	}

	return nil
}
