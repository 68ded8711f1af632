package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// reschedule makes cancel run a pass right after withdrawing.
//
//nolint:gochecknoglobals // Flag storage.
var reschedule bool

// cancelCmd withdraws the notifications of one alarm.
//
//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var cancelCmd = &cobra.Command{
	Use:   "cancel <alarm-id>",
	Short: "Withdraw every notification of an alarm.",
	Long: `Withdraws every notification scheduled for the alarm and removes it from
the ledger. An approved alarm is scheduled again by the next pass, which is how
edits to its time or repeat days are applied; --reschedule runs that pass now.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, closeAgent, err := openAgent(ctx, true)
		if err != nil {
			return err
		}

		defer closeAgent()

		if reschedule {
			report, err := a.Reschedule(ctx, args[0])
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "rescheduled: %d notifications\n", report.Scheduled)

			return nil
		}

		cancelled, err := a.Cancel(ctx, args[0])
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cancelled: %d notifications\n", cancelled)

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	cancelCmd.Flags().BoolVarP(&reschedule, "reschedule", "r", false, "run a reconciliation pass afterwards")
}
