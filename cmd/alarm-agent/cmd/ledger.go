package cmd

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-agent/internal/repository/ledger"
	"github.com/oshokin/alarm-agent/internal/service/agent"
)

// ledgerRow is one scheduled notification as printed.
type ledgerRow struct {
	Identifier      string    `json:"identifier"`
	AlarmID         string    `json:"alarm_id"`
	OccurrenceIndex int       `json:"occurrence_index"`
	FireAt          time.Time `json:"fire_at,omitzero"`
}

// ledgerCmd prints what the ledger records as scheduled.
//
//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "List the notifications recorded as scheduled.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, closeStore, err := agent.OpenStore(ctx, cfg.Store)
		if err != nil {
			return err
		}

		defer closeStore()

		entries := ledger.New(store).Load(ctx)

		rows := make([]ledgerRow, 0, len(entries))
		for identifier, entry := range entries {
			rows = append(rows, ledgerRow{
				Identifier:      identifier,
				AlarmID:         entry.AlarmID,
				OccurrenceIndex: entry.OccurrenceIndex,
				FireAt:          entry.FireAt,
			})
		}

		slices.SortFunc(rows, func(a, b ledgerRow) int {
			if c := a.FireAt.Compare(b.FireAt); c != 0 {
				return c
			}

			return cmp.Compare(a.Identifier, b.Identifier)
		})

		out := cmd.OutOrStdout()

		if jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")

			return enc.Encode(rows)
		}

		if len(rows) == 0 {
			_, _ = fmt.Fprintln(out, "Nothing scheduled.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(w, "IDENTIFIER\tALARM\tFIRES AT")

		for _, row := range rows {
			fireAt := "unknown"
			if !row.FireAt.IsZero() {
				fireAt = row.FireAt.Local().Format(time.DateTime)
			}

			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", row.Identifier, row.AlarmID, fireAt)
		}

		return w.Flush()
	},
}
