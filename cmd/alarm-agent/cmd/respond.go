package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// respondCmd answers an alarm request.
//
//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var respondCmd = &cobra.Command{
	Use:       "respond <alarm-id> approve|decline",
	Short:     "Approve or decline an alarm request.",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"approve", "decline"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var approve bool

		answer := strings.ToLower(args[1])

		switch answer {
		case "approve":
			approve = true
		case "decline":
		default:
			return fmt.Errorf("unknown answer %q, expected approve or decline", args[1])
		}

		ctx := cmd.Context()

		a, closeAgent, err := openAgent(ctx, false)
		if err != nil {
			return err
		}

		defer closeAgent()

		if err = a.Respond(ctx, args[0], approve); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "alarm %s: %sd\n", args[0], answer)

		return nil
	},
}
