package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/maltedev/politician-trades/internal/schedule"
)

var scheduleOnce bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the scrape plan every SCHEDULE_INTERVAL until interrupted",
	Long: `Runs SCHEDULE_PLAN (default "usa:10,germany:1") every SCHEDULE_INTERVAL
(default 6h). With --once the plan runs a single time and the command exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			s, err := a.newScheduler()
			if err != nil {
				return err
			}

			if scheduleOnce {
				return writeJSON(cmd.OutOrStdout(), s.RunOnce(ctx))
			}

			if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	},
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleOnce, "once", false, "run the plan once and exit")
	rootCmd.AddCommand(scheduleCmd)
}

func (a *app) newScheduler() (*schedule.Scheduler, error) {
	plan, err := schedule.ParsePlan(a.cfg.Schedule.Plan)
	if err != nil {
		return nil, err
	}
	return schedule.New(a.orchestrator, schedule.Config{
		Interval:     a.cfg.Schedule.Interval,
		Plan:         plan,
		RunOnStartup: a.cfg.Schedule.RunOnStartup,
	}, a.logger), nil
}
