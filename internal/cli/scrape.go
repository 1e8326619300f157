package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maltedev/politician-trades/internal/scraper"
)

var scrapeOpts scraper.Options

var scrapeCmd = &cobra.Command{
	Use:   "scrape <country>",
	Short: "Scrape and store the trades of one country",
	Example: `  trade-scraper scrape usa --pages 5 --tx-range 90d
  trade-scraper scrape germany --store sqlite`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			result := a.orchestrator.ScrapeCountry(ctx, args[0], scrapeOpts)
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("scrape of %s failed: %s", args[0], result.Error)
			}
			return nil
		})
	},
}

var scrapeAllCmd = &cobra.Command{
	Use:   "scrape-all",
	Short: "Scrape every enabled country in registry order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			summary := a.orchestrator.ScrapeAll(ctx, scrapeOpts)
			if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}

			var failed []string
			for _, r := range summary.Results {
				if !r.Success {
					failed = append(failed, r.Country)
				}
			}
			a.logger.Info("scrape-all finished",
				"countries", summary.TotalCountries,
				"successful", summary.SuccessfulCountries,
				"new_trades", summary.NewTrades,
				"failed", strings.Join(failed, ","))
			return ctx.Err()
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{scrapeCmd, scrapeAllCmd} {
		c.Flags().IntVar(&scrapeOpts.Pages, "pages", 0, "pages to fetch per country (0 uses the scraper default)")
		c.Flags().StringVar(&scrapeOpts.TxRange, "tx-range", "", "transaction window for sources that support one, e.g. 30d")
		rootCmd.AddCommand(c)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
