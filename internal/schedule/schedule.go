// Package schedule runs a fixed scrape plan on an interval.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/maltedev/politician-trades/internal/scraper"
)

// PlanRunner executes one batch. *scraper.Orchestrator satisfies it.
type PlanRunner interface {
	ScrapePlan(ctx context.Context, plan []scraper.PlanEntry) scraper.Summary
}

// ParsePlan reads "country:pages" pairs separated by commas, for example
// "usa:10,germany:1". A missing page count means the scraper default.
func ParsePlan(s string) ([]scraper.PlanEntry, error) {
	var plan []scraper.PlanEntry
	seen := make(map[string]bool)

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		code, pagesStr, hasPages := strings.Cut(part, ":")
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, fmt.Errorf("invalid plan entry %q: missing country", part)
		}

		var opts scraper.Options
		if hasPages {
			pages, err := strconv.Atoi(strings.TrimSpace(pagesStr))
			if err != nil || pages < 1 {
				return nil, fmt.Errorf("invalid plan entry %q: pages must be a positive number", part)
			}
			opts.Pages = pages
		}

		key := strings.ToLower(code)
		if seen[key] {
			return nil, fmt.Errorf("invalid plan: %s listed twice", code)
		}
		seen[key] = true

		plan = append(plan, scraper.PlanEntry{Country: code, Options: opts})
	}

	if len(plan) == 0 {
		return nil, fmt.Errorf("plan is empty")
	}
	return plan, nil
}

type Config struct {
	Interval     time.Duration
	Plan         []scraper.PlanEntry
	RunOnStartup bool
}

// Scheduler triggers the plan every Interval. A tick that arrives while the
// previous batch is still running is skipped.
type Scheduler struct {
	runner  PlanRunner
	config  Config
	logger  *slog.Logger
	running atomic.Bool
	runs    atomic.Int64
}

func New(runner PlanRunner, config Config, logger *slog.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = 6 * time.Hour
	}
	return &Scheduler{
		runner: runner,
		config: config,
		logger: logger.With("component", "scheduler"),
	}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		"interval", s.config.Interval,
		"countries", len(s.config.Plan),
		"run_on_startup", s.config.RunOnStartup)

	if s.config.RunOnStartup {
		s.trigger(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

// Runs reports how many batches have finished.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

func (s *Scheduler) trigger(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous scheduled scrape still running, skipping tick")
		return
	}

	go func() {
		defer s.running.Store(false)
		s.RunOnce(ctx)
	}()
}

// RunOnce executes the plan synchronously.
func (s *Scheduler) RunOnce(ctx context.Context) scraper.Summary {
	s.logger.Info("scheduled scrape starting")
	summary := s.runner.ScrapePlan(ctx, s.config.Plan)
	s.runs.Add(1)

	s.logger.Info("scheduled scrape finished",
		"countries", summary.TotalCountries,
		"successful", summary.SuccessfulCountries,
		"trades", summary.TotalTrades,
		"new_trades", summary.NewTrades)
	return summary
}
