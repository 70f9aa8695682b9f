package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quote-sync/internal/adapters/render"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

func newAddCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Add a quote",
		Example: `  quotectl add "Simplicity is prerequisite for reliability." -c Engineering`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFrom(cmd)

			q, err := env.Quotes.AddQuote(cmd.Context(), strings.Join(args, " "), category)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added to %s (%d quotes)\n", q.Category, env.Quotes.Count())

			return err
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "quote category (required)")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func newRandomCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Print a random quote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := envFrom(cmd)

			q, err := env.Quotes.RandomQuote(cmd.Context(), category)
			if err != nil {
				if domain.IsNotFound(err) {
					return fmt.Errorf("no quotes available")
				}

				return err
			}

			return render.Terminal{}.Render(cmd.OutOrStdout(), []domain.Quote{q})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "pick only from this category")

	return cmd
}

func newListCommand() *cobra.Command {
	var (
		category string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quotes",
		Long:  "List quotes in store order. Without --category the saved filter applies.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			quotes, err := envFrom(cmd).Quotes.ListQuotes(cmd.Context(), category)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")

				return enc.Encode(quotes)
			}

			return render.Terminal{EmptyMessage: "No quotes."}.Render(cmd.OutOrStdout(), quotes)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", `category to show ("all" for every quote)`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")

	return cmd
}

func newCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories in first-seen order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, c := range envFrom(cmd).Quotes.Categories(cmd.Context()) {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), c); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

func newFilterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "filter [CATEGORY]",
		Short: "Show or set the saved category filter",
		Long:  `Without an argument, print the saved filter. With one, save it; "all" clears it.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quotes := envFrom(cmd).Quotes

			var (
				filter string
				err    error
			)

			if len(args) == 0 {
				filter, err = quotes.Filter(cmd.Context())
			} else {
				filter, err = quotes.SetFilter(cmd.Context(), args[0])
			}

			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), filter)

			return err
		},
	}
}
