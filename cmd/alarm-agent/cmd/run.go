package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-agent/internal/service/agent"
)

// runCmd keeps the agent reconciling until interrupted.
//
//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile alarms periodically and deliver notifications.",
	Long: `Restores pending notifications, reconciles immediately and then every
sync_interval until interrupted. Fired notifications are shown as desktop
alerts. When health_address is set a gRPC health endpoint reports whether the
last pass succeeded.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, closeAgent, err := agent.NewFromConfig(ctx, cfg)
		if err != nil {
			return err
		}

		defer closeAgent()

		return a.Run(ctx)
	},
}
