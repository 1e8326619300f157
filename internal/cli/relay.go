package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	relayOnce        bool
	relayRequeueDead bool
	relayCountry     string
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish pending trade events from the outbox to the redis stream",
	Long: `Publishes pending TRADE_DISCLOSED events every RELAY_POLL_INTERVAL.
With --once a single batch is published and its counts printed as JSON.
With --requeue-dead events parked after too many failed publishes are made
pending again (optionally only those of --country) and the command exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			if relayRequeueDead {
				if a.db == nil {
					return errors.New("requeueing dead letters needs the postgres store")
				}
				n, err := a.db.Outbox().RequeueDeadLetters(ctx, relayCountry)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %d events\n", n)
				return nil
			}

			relay, err := a.newRelay(ctx)
			if err != nil {
				return err
			}

			if relayOnce {
				res, err := relay.RunOnce(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			}

			if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	},
}

func init() {
	relayCmd.Flags().BoolVar(&relayOnce, "once", false, "publish one batch and exit")
	relayCmd.Flags().BoolVar(&relayRequeueDead, "requeue-dead", false, "make dead letter events pending again and exit")
	relayCmd.Flags().StringVar(&relayCountry, "country", "", "limit --requeue-dead to one country")
	rootCmd.AddCommand(relayCmd)
}
