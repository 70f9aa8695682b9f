package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

const syncServiceName = "quote-sync"

// SyncReport summarises one reconciliation run.
type SyncReport struct {
	Fetched   int       `json:"fetched"`
	Conflicts int       `json:"conflicts"`
	Added     int       `json:"added"`
	Total     int       `json:"total"`
	SyncedAt  time.Time `json:"syncedAt"`
}

// SyncService reconciles the quote store with a remote QuoteSource.
// Runs are serialised; the store lock lets user writes interleave safely.
type SyncService struct {
	store    *QuoteStore
	source   ports.QuoteSource
	metrics  ports.SyncMetrics
	executor *Executor
	logger   *slog.Logger

	fetchLimit      int
	interval        time.Duration
	pushOnAdd       bool
	pushConcurrency int

	mu sync.Mutex
}

// SyncServiceConfig contains the dependencies and settings of a SyncService.
type SyncServiceConfig struct {
	Store  *QuoteStore
	Source ports.QuoteSource

	// Metrics is optional.
	Metrics ports.SyncMetrics

	// FetchLimit caps the remote records taken per run. <= 0 takes all.
	FetchLimit int

	// Interval between background runs.
	Interval time.Duration

	// PushOnAdd enables Publish.
	PushOnAdd bool

	// PushConcurrency bounds concurrent pushes. Defaults to 4.
	PushConcurrency int

	Logger *slog.Logger
}

// NewSyncService creates a sync service.
func NewSyncService(cfg SyncServiceConfig) *SyncService {
	if cfg.Store == nil || cfg.Source == nil {
		panic("app: SyncServiceConfig requires Store and Source")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopSyncMetrics{}
	}

	pushConcurrency := cfg.PushConcurrency
	if pushConcurrency <= 0 {
		pushConcurrency = 4
	}

	return &SyncService{
		store:           cfg.Store,
		source:          cfg.Source,
		metrics:         metrics,
		executor:        NewExecutor(logger),
		logger:          logger,
		fetchLimit:      cfg.FetchLimit,
		interval:        cfg.Interval,
		pushOnAdd:       cfg.PushOnAdd,
		pushConcurrency: pushConcurrency,
	}
}

// SyncNow fetches remote quotes and merges them into the store.
// Any failure leaves the store unchanged and returns an error matching domain.ErrUnavailable.
func (s *SyncService) SyncNow(ctx context.Context) (SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var merged domain.ReconcileResult

	op := Operation[struct{}, []domain.Quote, []domain.Quote, SyncReport]{
		Name: "sync-quotes",
		Validate: func(ctx context.Context, _ struct{}) error {
			return ctx.Err()
		},
		Perform: func(ctx context.Context, _ struct{}) ([]domain.Quote, error) {
			return s.source.FetchQuotes(ctx, s.fetchLimit)
		},
		Verify: func(_ context.Context, _ struct{}, fetched []domain.Quote) ([]domain.Quote, error) {
			for i, q := range fetched {
				if err := q.Validate(); err != nil {
					return nil, fmt.Errorf("remote record %d: %w", i, err)
				}
			}

			return fetched, nil
		},
		Archive: func(ctx context.Context, _ struct{}, verified []domain.Quote) error {
			var err error

			merged, err = s.store.Merge(ctx, verified)

			return err
		},
		Respond: func(_ context.Context, _ struct{}, verified []domain.Quote) (SyncReport, error) {
			return SyncReport{
				Fetched:   len(verified),
				Conflicts: merged.Conflicts,
				Added:     merged.Added,
				Total:     s.store.Len(),
				SyncedAt:  time.Now().UTC(),
			}, nil
		},
	}

	report, err := Execute(ctx, s.executor, op, struct{}{})
	if err != nil {
		s.metrics.RecordSync(ports.SyncOutcomeFailed, 0, 0)

		if !domain.IsUnavailable(err) {
			err = errors.Join(domain.NewUnavailableError(syncServiceName, "sync failed"), err)
		}

		return SyncReport{}, err
	}

	outcome := ports.SyncOutcomeUnchanged
	if merged.Changed() {
		outcome = ports.SyncOutcomeMerged
	}

	s.metrics.RecordSync(outcome, report.Conflicts, report.Added)

	if report.Conflicts > 0 {
		s.logger.InfoContext(ctx, "conflicts resolved with server data",
			slog.Int("conflicts", report.Conflicts),
		)
	}

	s.logger.InfoContext(ctx, "quotes synced",
		slog.Int("fetched", report.Fetched),
		slog.Int("added", report.Added),
		slog.Int("total", report.Total),
	)

	return report, nil
}

// Run syncs every interval until ctx is cancelled. Failed runs are logged and skipped.
func (s *SyncService) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", s.interval)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "sync loop started", slog.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sync loop stopped")

			return nil
		case <-ticker.C:
			if _, err := s.SyncNow(ctx); err != nil && ctx.Err() == nil {
				s.logger.WarnContext(ctx, "scheduled sync failed", slog.Any("error", err))
			}
		}
	}
}

// Publish pushes quotes to the remote collaborator when PushOnAdd is set.
// Failures are logged; nothing is rolled back.
func (s *SyncService) Publish(ctx context.Context, quotes []domain.Quote) {
	if !s.pushOnAdd || len(quotes) == 0 {
		return
	}

	failed := 0

	for i, err := range eachLimit(ctx, s.pushConcurrency, quotes, s.source.PushQuote) {
		if err != nil {
			failed++

			s.logger.WarnContext(ctx, "failed to push quote",
				slog.String("category", quotes[i].Category),
				slog.Any("error", err),
			)
		}
	}

	s.logger.DebugContext(ctx, "quotes pushed",
		slog.Int("pushed", len(quotes)-failed),
		slog.Int("failed", failed),
	)
}

type noopSyncMetrics struct{}

func (noopSyncMetrics) RecordSync(ports.SyncOutcome, int, int) {}
