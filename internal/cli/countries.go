package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maltedev/politician-trades/internal/countries"
)

var regionFlag string

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List supported countries and whether their scraper is enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Loads .env so ENABLE_<COUNTRY>_SCRAPER overrides apply.
		if _, _, err := setup(); err != nil {
			return err
		}
		registry := countries.Load(nil)

		list := registry.All()
		if regionFlag != "" {
			list = registry.ByRegion(regionFlag)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CODE\tNAME\tREGION\tENABLED\tSOURCE")
		for _, c := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", c.Code, c.Name, c.Region, c.Enabled, c.SourceName())
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\nregions: %s\n", strings.Join(registry.Regions(), ", "))
		return nil
	},
}

func init() {
	countriesCmd.Flags().StringVar(&regionFlag, "region", "", "only list enabled countries of this region")
	rootCmd.AddCommand(countriesCmd)
}
