package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FranksOps/domainhunt/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "domainhunt",
		Short: "Resolve company names to their primary web domain",
		Long: `domainhunt reads a list of names from a CSV file, searches for each one
and records the hostname of the first result.

Settings come from the environment (or a .env file):
  INPUT, OUTPUT, CONCURRENCY, DELAY, BROWSER, NAV_TIMEOUT_MS, SEARCH_ENDPOINT,
  APEX_DOMAIN, FINGERPRINT, PROXY_FILE, USER_AGENTS_FILE, RPS, JITTER,
  CHROME_PATH, CHROME_PROXY, METRICS_PORT, LOG_LEVEL`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger := newLogger(cfg.LogLevel)
			slog.SetDefault(logger)

			return run(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.AddCommand(newSummaryCmd())

	return rootCmd
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
