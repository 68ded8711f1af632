package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// syncCmd runs a single reconciliation pass.
//
//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, closeAgent, err := openAgent(cmd.Context(), true)
		if err != nil {
			return err
		}

		defer closeAgent()

		report, err := a.Sync(cmd.Context())
		if report != nil {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "desired: %d, cancelled: %d, scheduled: %d\n",
				report.Desired, report.Cancelled, report.Scheduled)

			if len(report.Stale) > 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(),
					"stale: %s (run \"alarm-agent cancel --reschedule <id>\" to apply the edits)\n",
					strings.Join(report.Stale, ", "))
			}
		}

		return err
	},
}
