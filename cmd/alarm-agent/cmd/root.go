package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-agent/internal/config"
	"github.com/oshokin/alarm-agent/internal/logger"
	"github.com/oshokin/alarm-agent/internal/service/agent"
	"github.com/oshokin/alarm-agent/internal/service/lock"
	"github.com/oshokin/alarm-agent/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the level from the configuration file.
	logLevel string
	// jsonOutput switches listings to JSON.
	jsonOutput bool

	// rootCmd represents the base command of the alarm agent.
	rootCmd = &cobra.Command{
		Use:   "alarm-agent",
		Short: "Schedule approved alarms as local notifications.",
		Long: `Keeps this device's notifications in line with the alarms approved by its owner.

The agent reads alarms from the configured source (PostgREST endpoint, Postgres
database or a local YAML file), schedules the upcoming occurrences of every
approved alarm and withdraws notifications of alarms that were declined,
deleted or reassigned. Use "run" to keep it going, or the other commands to
inspect and answer alarms by hand.`,
		SilenceUsage: true,
	}
)

// Execute runs the alarm-agent CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print listings as JSON")

	rootCmd.AddCommand(runCmd, syncCmd, ledgerCmd, cancelCmd, requestsCmd, respondCmd, dismissCmd)
}

// loadConfig reads the settings and applies the effective log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	logger.SetLevel(parsed)

	return cfg, nil
}

// openAgent wires an agent from the settings. With owned set the agent is
// started and must own the local schedule; otherwise starting is attempted
// and a schedule held by another process is tolerated.
func openAgent(ctx context.Context, owned bool) (*agent.Agent, agent.CloseFunc, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	a, closeAgent, err := agent.NewFromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	err = a.Start(ctx)

	switch {
	case err == nil:
	case !owned && errors.Is(err, lock.ErrLocked):
		logger.InfoKV(ctx, "Another agent process owns the schedule", "error", err)
	default:
		closeAgent()
		return nil, nil, err
	}

	return a, closeAgent, nil
}
