package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/maltedev/politician-trades/internal/events"
)

var consumeConfig events.ConsumerConfig

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Follow the trade event stream and print each new trade",
	Example: `  trade-scraper consume --country usa --country germany
  trade-scraper consume --group alerts --consumer alerts-1`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		ctx := cmd.Context()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		out := cmd.OutOrStdout()
		consumer := events.NewConsumer(client, func(_ context.Context, e *events.TradeDisclosedPayload) error {
			return writeJSON(out, e)
		}, consumeConfig, log)

		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	consumeCmd.Flags().StringVar(&consumeConfig.Group, "group", "trade-consumer-group", "consumer group name")
	consumeCmd.Flags().StringVar(&consumeConfig.Consumer, "consumer", "consumer-1", "consumer name within the group")
	consumeCmd.Flags().StringSliceVar(&consumeConfig.Countries, "country", nil, "only print trades of these countries")
	rootCmd.AddCommand(consumeCmd)
}
