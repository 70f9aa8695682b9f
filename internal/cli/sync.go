package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Merge quotes from the remote service",
		Long:  "Fetch remote quotes and merge them into the store. On a text collision the remote quote replaces the local one.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := envFrom(cmd).Sync.SyncNow(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if report.Conflicts > 0 {
				if _, err := fmt.Fprintf(out, "Conflicts resolved with server data: %d\n", report.Conflicts); err != nil {
					return err
				}
			}

			_, err = fmt.Fprintf(out, "Quotes synced with server: %d fetched, %d added, %d total\n",
				report.Fetched, report.Added, report.Total)

			return err
		},
	}
}
