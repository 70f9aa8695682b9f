// Package cli implements quotectl, a terminal client over the same quote
// store the HTTP service uses.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/sqlite"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

// Flags are the persistent flags shared by every command.
type Flags struct {
	ConfigDir string
	Profile   string
	StorePath string
	LogLevel  string
}

// Env is what a command runs against.
type Env struct {
	Quotes *app.QuoteService
	Sync   *app.SyncService
	Logger *slog.Logger

	closers []func() error
}

// Close releases resources opened for the command.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}

	return errors.Join(errs...)
}

// EnvFactory builds the Env for one invocation.
type EnvFactory func(ctx context.Context, flags *Flags) (*Env, error)

type envKey struct{}

func envFrom(cmd *cobra.Command) *Env {
	env, _ := cmd.Context().Value(envKey{}).(*Env)
	if env == nil {
		panic("cli: command run without an environment")
	}

	return env
}

const needsEnv = "quotectl/env"

// NewRootCommand assembles quotectl. newEnv runs once before a subcommand
// and the Env is closed when it returns, whether or not it failed.
func NewRootCommand(newEnv EnvFactory) *cobra.Command {
	flags := &Flags{}

	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Manage and sync a local quote collection",
		Long: `quotectl reads and edits the quote store shared with the quote-sync service.

Quotes are text/category pairs. A sync pulls quotes from the remote service;
when a remote quote has the same text as a local one, the remote copy wins.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[needsEnv] == "" {
				return nil
			}

			env, err := newEnv(cmd.Context(), flags)
			if err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, env))

			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigDir, "config-dir", "configs", "directory holding base.yaml and profile files")
	pf.StringVar(&flags.Profile, "profile", envOr("APP_ENVIRONMENT", "local"), "configuration profile")
	pf.StringVar(&flags.StorePath, "store", "", "SQLite database path (overrides store.path)")
	pf.StringVar(&flags.LogLevel, "log-level", "warn", "log level: trace, debug, info, warn, error")

	root.AddCommand(
		withEnv(newAddCommand()),
		withEnv(newRandomCommand()),
		withEnv(newListCommand()),
		withEnv(newCategoriesCommand()),
		withEnv(newFilterCommand()),
		withEnv(newImportCommand()),
		withEnv(newExportCommand()),
		withEnv(newSyncCommand()),
	)

	return root
}

// withEnv marks cmd as needing an Env and closes it after RunE.
// PersistentPostRunE is skipped when RunE fails, so it cannot do this.
func withEnv(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}

	cmd.Annotations[needsEnv] = "true"

	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		env := envFrom(cmd)

		return errors.Join(run(cmd, args), env.Close())
	}

	return cmd
}

// DefaultEnv loads configuration and opens the SQLite store and remote client.
func DefaultEnv(ctx context.Context, flags *Flags) (*Env, error) {
	cfg, err := config.LoadDir(flags.ConfigDir, flags.Profile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flags.StorePath != "" {
		cfg.Store.Path = flags.StorePath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewWithWriter(&logging.Config{
		Level:   flags.LogLevel,
		Format:  "pretty",
		Service: "quotectl",
		Version: cfg.App.Version,
	}, os.Stderr)

	db, err := sqlite.Open(ctx, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	env := &Env{Logger: logger, closers: []func() error{db.Close}}

	store := app.NewQuoteStore(app.QuoteStoreConfig{
		KV:           db,
		SeedDefaults: cfg.Store.SeedDefaults,
		Logger:       logger,
	})
	if err := store.Load(ctx); err != nil {
		_ = env.Close()

		return nil, fmt.Errorf("loading quotes: %w", err)
	}

	httpClient, err := clients.New(clients.ConfigFrom(cfg.Client, cfg.Services.Remote, logger))
	if err != nil {
		_ = env.Close()

		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}

	env.Sync = app.NewSyncService(app.SyncServiceConfig{
		Store:           store,
		Source:          acl.NewQuoteClient(acl.QuoteClientConfig{Client: httpClient, Logger: logger}),
		FetchLimit:      cfg.Sync.FetchLimit,
		PushOnAdd:       cfg.Sync.PushOnAdd,
		PushConcurrency: cfg.Sync.PushConcurrency,
		Logger:          logger,
	})

	env.Quotes = app.NewQuoteService(app.QuoteServiceConfig{
		Store:     store,
		Settings:  db,
		Session:   memory.New(),
		Publisher: env.Sync,
		Logger:    logger,
	})

	return env, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
