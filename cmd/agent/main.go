package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xDMPx/PyDockMateAgent/app"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		settingsPath string
		logLevel     string
		logFormat    string
		interval     time.Duration
		timeout      time.Duration
		concurrency  int
		journalPath  string
	)

	cmd := &cobra.Command{
		Use:     "pydockmate-agent <hub-address>",
		Short:   "Report the containers on this host to a PyDockMate hub",
		Version: app.Version,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(args[0], settingsPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if flags.Changed("interval") {
				cfg.Interval = interval
			}
			if flags.Changed("timeout") {
				cfg.Timeout = timeout
			}
			if flags.Changed("concurrency") {
				cfg.Concurrency = concurrency
			}
			if flags.Changed("journal") {
				cfg.JournalPath = journalPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Past argument validation, errors are not usage errors
			cmd.SilenceUsage = true

			logger, err := app.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.Bootstrap(ctx, cfg, logger); err != nil {
				logger.Error().Err(err).Msg("agent stopped")
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&settingsPath, "config", "", "Settings file (default <config dir>/agent.yaml)")
	flags.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "json", "Log format: json or console")
	flags.DurationVar(&interval, "interval", 60*time.Second, "Time between reconciliation ticks")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "Timeout for each hub call")
	flags.IntVar(&concurrency, "concurrency", 1, "Hub mutations in flight per pass")
	flags.StringVar(&journalPath, "journal", "", "Pass journal sqlite path, empty disables")
	return cmd
}
