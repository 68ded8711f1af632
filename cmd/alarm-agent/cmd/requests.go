package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	domain "github.com/oshokin/alarm-agent/internal/domain/alarm"
	"github.com/oshokin/alarm-agent/internal/repository/alarms"
	"github.com/oshokin/alarm-agent/internal/service/agent"
)

// requestsCmd lists the alarm requests waiting for an answer.
//
//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List alarm requests waiting for an answer.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		source, closeSource, err := agent.OpenSource(ctx, cfg)
		if err != nil {
			return err
		}

		defer closeSource()

		pending, err := source.FetchPending(ctx, cfg.OwnerID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		if jsonOutput {
			records := make([]alarms.Record, 0, len(pending))
			for _, a := range pending {
				records = append(records, alarms.FromAlarm(a))
			}

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")

			return enc.Encode(records)
		}

		if len(pending) == 0 {
			_, _ = fmt.Fprintln(out, "No pending requests.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tLABEL\tTIME\tREPEAT\tPROOF")

		for _, a := range pending {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
				a.ID, a.DisplayTitle(), describeTime(a), describeRepeat(a), a.ProofOfAwakeRequired)
		}

		return w.Flush()
	},
}

// weekdayNames are short names indexed like repeat days.
//
//nolint:gochecknoglobals // Lookup table.
var weekdayNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func describeTime(a *domain.Alarm) string {
	if a.IsRepeating() {
		return a.FireTime.Local().Format("15:04")
	}

	return a.FireTime.Local().Format(time.DateTime)
}

func describeRepeat(a *domain.Alarm) string {
	if !a.IsRepeating() {
		return "once"
	}

	names := make([]string, 0, len(a.RepeatDays))

	for _, day := range a.RepeatDays {
		if day < 0 || day >= len(weekdayNames) {
			names = append(names, "?")
			continue
		}

		names = append(names, weekdayNames[day])
	}

	return strings.Join(names, ",")
}
