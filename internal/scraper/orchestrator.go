package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/maltedev/politician-trades/internal/countries"
	"github.com/maltedev/politician-trades/internal/models"
	"github.com/maltedev/politician-trades/internal/persister"
	"github.com/maltedev/politician-trades/internal/retry"
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

const DefaultCountryDelay = 5 * time.Second

// Sink receives the trades of a successful country scrape.
type Sink interface {
	Persist(ctx context.Context, trades []models.Trade) (persister.Result, error)
}

type CountryStatus struct {
	Country    string     `json:"country"`
	State      State      `json:"state"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Trades     int        `json:"trades"`
	NewTrades  int        `json:"new_trades"`
	Error      string     `json:"error,omitempty"`
}

type CountryResult struct {
	Country     string        `json:"country"`
	Success     bool          `json:"success"`
	TradesCount int           `json:"trades_count"`
	NewTrades   int           `json:"new_trades"`
	Skipped     int           `json:"skipped"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	Err         error         `json:"-"`
}

type Summary struct {
	TotalCountries      int             `json:"total_countries"`
	SuccessfulCountries int             `json:"successful_countries"`
	TotalTrades         int             `json:"total_trades"`
	NewTrades           int             `json:"new_trades"`
	Results             []CountryResult `json:"results"`
	StartedAt           time.Time       `json:"started_at"`
	FinishedAt          time.Time       `json:"finished_at"`
}

// PlanEntry is one country of a batch with its own options.
type PlanEntry struct {
	Country string
	Options Options
}

type ScraperInfo struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Region      string `json:"region"`
	Enabled     bool   `json:"enabled"`
	Implemented bool   `json:"implemented"`
}

// Orchestrator runs country scrapers one after another and persists their
// trades. A failing country is reported in the summary and never stops the
// rest of the batch.
type Orchestrator struct {
	registry     *countries.Registry
	factory      Factory
	sink         Sink
	countryDelay time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	scrapers map[string]CountryScraper
	statuses map[string]*CountryStatus
}

func NewOrchestrator(registry *countries.Registry, factory Factory, sink Sink, countryDelay time.Duration, logger *slog.Logger) *Orchestrator {
	if countryDelay < 0 {
		countryDelay = DefaultCountryDelay
	}
	return &Orchestrator{
		registry:     registry,
		factory:      factory,
		sink:         sink,
		countryDelay: countryDelay,
		logger:       logger.With("component", "orchestrator"),
		scrapers:     make(map[string]CountryScraper),
		statuses:     make(map[string]*CountryStatus),
	}
}

// ScrapeCountry scrapes and persists one country. Failures come back as a
// result carrying a *ScraperError, never as a panic or a returned error.
func (o *Orchestrator) ScrapeCountry(ctx context.Context, code string, opts Options) (result CountryResult) {
	start := time.Now()
	result.Country = code

	country, ok := o.registry.Get(code)
	if !ok {
		return o.fail(result, start, &ScraperError{Country: code, Err: ErrCountryNotFound})
	}
	code = country.Code
	result.Country = code

	if !country.Enabled {
		return o.fail(result, start, &ScraperError{Country: code, Err: ErrCountryDisabled})
	}

	o.setStatus(code, func(s *CountryStatus) {
		s.State = StateRunning
		s.StartedAt = &start
		s.FinishedAt = nil
		s.Error = ""
	})

	defer func() {
		if r := recover(); r != nil {
			result = o.fail(result, start, &ScraperError{Country: code, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	s, err := o.scraperFor(country)
	if err != nil {
		return o.fail(result, start, &ScraperError{Country: code, Err: err})
	}

	trades, err := s.Scrape(ctx, opts)
	if err != nil {
		return o.fail(result, start, &ScraperError{Country: code, Err: err})
	}
	result.TradesCount = len(trades)

	if o.sink != nil && len(trades) > 0 {
		res, err := o.sink.Persist(ctx, trades)
		result.NewTrades = res.Inserted
		result.Skipped = res.Skipped
		if err != nil {
			return o.fail(result, start, &ScraperError{Country: code, Err: fmt.Errorf("failed to persist trades: %w", err)})
		}
	}

	result.Success = true
	result.Duration = time.Since(start)

	finished := time.Now()
	o.setStatus(code, func(s *CountryStatus) {
		s.State = StateSucceeded
		s.FinishedAt = &finished
		s.Trades = result.TradesCount
		s.NewTrades = result.NewTrades
	})

	o.logger.Info("country scraped",
		"country", code,
		"trades", result.TradesCount,
		"new_trades", result.NewTrades,
		"duration", result.Duration)

	return result
}

// ScrapeAll runs every enabled country with the same options.
func (o *Orchestrator) ScrapeAll(ctx context.Context, opts Options) Summary {
	enabled := o.registry.Enabled()
	plan := make([]PlanEntry, 0, len(enabled))
	for _, c := range enabled {
		plan = append(plan, PlanEntry{Country: c.Code, Options: opts})
	}
	return o.ScrapePlan(ctx, plan)
}

// ScrapePlan runs the entries in order with the inter-country delay between
// them. Once ctx is done the remaining entries are reported as failed.
func (o *Orchestrator) ScrapePlan(ctx context.Context, plan []PlanEntry) Summary {
	summary := Summary{
		TotalCountries: len(plan),
		StartedAt:      time.Now(),
	}

	o.logger.Info("starting batch scrape", "countries", len(plan))

	for _, entry := range plan {
		if c, ok := o.registry.Get(entry.Country); ok {
			o.setStatus(c.Code, func(s *CountryStatus) {
				if s.State != StateRunning {
					s.State = StatePending
				}
			})
		}
	}

	for i, entry := range plan {
		if i > 0 {
			if err := retry.Sleep(ctx, o.countryDelay); err != nil {
				o.logger.Warn("batch interrupted", "error", err)
			}
		}

		var result CountryResult
		if err := ctx.Err(); err != nil {
			result = o.fail(CountryResult{Country: entry.Country}, time.Now(), &ScraperError{Country: entry.Country, Err: err})
		} else {
			result = o.ScrapeCountry(ctx, entry.Country, entry.Options)
		}

		summary.Results = append(summary.Results, result)
		if result.Success {
			summary.SuccessfulCountries++
		}
		summary.TotalTrades += result.TradesCount
		summary.NewTrades += result.NewTrades
	}

	summary.FinishedAt = time.Now()

	o.logger.Info("batch scrape completed",
		"countries", summary.TotalCountries,
		"successful", summary.SuccessfulCountries,
		"trades", summary.TotalTrades,
		"new_trades", summary.NewTrades,
		"duration", summary.FinishedAt.Sub(summary.StartedAt))

	return summary
}

// Statuses returns a snapshot of the last known state per country.
func (o *Orchestrator) Statuses() map[string]CountryStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[string]CountryStatus, len(o.statuses))
	for code, s := range o.statuses {
		out[code] = *s
	}
	return out
}

// AvailableScrapers lists every registered country, sorted by code.
func (o *Orchestrator) AvailableScrapers() []ScraperInfo {
	all := o.registry.All()
	infos := make([]ScraperInfo, 0, len(all))
	for _, c := range all {
		infos = append(infos, ScraperInfo{
			Code:        c.Code,
			Name:        c.Name,
			Region:      c.Region,
			Enabled:     c.Enabled,
			Implemented: Implemented(c.Scraper),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Code < infos[j].Code })
	return infos
}

func (o *Orchestrator) scraperFor(country countries.Country) (CountryScraper, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s, ok := o.scrapers[country.Code]; ok {
		return s, nil
	}
	s, err := o.factory(country)
	if err != nil {
		return nil, fmt.Errorf("failed to create scraper: %w", err)
	}
	o.scrapers[country.Code] = s
	return s, nil
}

func (o *Orchestrator) fail(result CountryResult, start time.Time, err error) CountryResult {
	result.Success = false
	result.Err = err
	result.Error = err.Error()
	result.Duration = time.Since(start)

	level := slog.LevelError
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCountryDisabled) {
		level = slog.LevelWarn
	}
	o.logger.Log(context.Background(), level, "country scrape failed", "country", result.Country, "error", err)

	if c, ok := o.registry.Get(result.Country); ok {
		finished := time.Now()
		o.setStatus(c.Code, func(s *CountryStatus) {
			s.State = StateFailed
			s.FinishedAt = &finished
			s.Error = err.Error()
		})
	}
	return result
}

func (o *Orchestrator) setStatus(code string, update func(*CountryStatus)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.statuses[code]
	if !ok {
		s = &CountryStatus{Country: code, State: StatePending}
		o.statuses[code] = s
	}
	update(s)
}
