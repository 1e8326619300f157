// Package cli holds the trade-scraper commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maltedev/politician-trades/internal/config"
	"github.com/maltedev/politician-trades/internal/logger"
)

var (
	storeFlag  string
	sqliteFlag string
	levelFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "trade-scraper",
	Short: "Collects politician stock trade disclosures",
	Long: `trade-scraper scrapes public disclosures of stock trades made by politicians,
stores them without duplicates and serves them over a REST API.

Configuration comes from environment variables (and a .env file when present);
the flags below override the matching variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "trade store: postgres or sqlite (overrides STORE)")
	rootCmd.PersistentFlags().StringVar(&sqliteFlag, "sqlite-path", "", "sqlite database file (overrides SQLITE_PATH)")
	rootCmd.PersistentFlags().StringVar(&levelFlag, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
}

// ExecuteContext runs the command line and exits non-zero on failure.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration, applies flag overrides and builds the logger.
func setup() (*config.Config, *slog.Logger, error) {
	if storeFlag != "" {
		os.Setenv("STORE", storeFlag)
	}
	if sqliteFlag != "" {
		os.Setenv("SQLITE_PATH", sqliteFlag)
	}
	if levelFlag != "" {
		os.Setenv("LOG_LEVEL", levelFlag)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, logger.New(cfg.Logging.Level, cfg.Logging.Format), nil
}

// withApp wires the application for the duration of fn.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(ctx, a)
}
