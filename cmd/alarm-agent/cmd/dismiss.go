package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// dismissCmd stops a fired alarm.
//
//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var dismissCmd = &cobra.Command{
	Use:   "dismiss <alarm-id>",
	Short: "Dismiss a fired alarm, solving a problem if it asks for proof of being awake.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, closeAgent, err := openAgent(ctx, false)
		if err != nil {
			return err
		}

		defer closeAgent()

		prompt := newPrompt(cmd.InOrStdin(), cmd.OutOrStdout())
		if err = a.Dismiss(ctx, args[0], prompt); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "alarm %s dismissed\n", args[0])

		return nil
	},
}

// newPrompt asks questions on out and reads one answer per line from in.
func newPrompt(in io.Reader, out io.Writer) func(context.Context, string) (string, error) {
	scanner := bufio.NewScanner(in)

	return func(ctx context.Context, question string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		_, _ = fmt.Fprintf(out, "Solve to dismiss: %s ", question)

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}

			return "", io.ErrUnexpectedEOF
		}

		return scanner.Text(), nil
	}
}
