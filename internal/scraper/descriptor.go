package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/politician-trades/internal/countries"
	"github.com/maltedev/politician-trades/internal/extractor"
	"github.com/maltedev/politician-trades/internal/fetch"
	"github.com/maltedev/politician-trades/internal/models"
	"github.com/maltedev/politician-trades/internal/normalizer"
	"github.com/maltedev/politician-trades/internal/ratelimit"
	"github.com/maltedev/politician-trades/internal/retry"
	"github.com/maltedev/politician-trades/internal/selector"
)

type Mode string

const (
	// ModeBrowser renders the page in headless chromium.
	ModeBrowser Mode = "browser"
	// ModeStatic fetches server rendered HTML over plain HTTP.
	ModeStatic Mode = "static"
)

// Descriptor is everything site specific about a country scraper.
type Descriptor struct {
	Mode     Mode
	BuildURL func(page int, opts Options) string
	Fetch    fetch.Options
	// Rows are the row selector candidates, most specific first.
	Rows    []string
	Profile extractor.Profile

	DefaultPages int
	MaxPages     int
	PageDelay    time.Duration
}

func (d Descriptor) pages(requested int) int {
	pages := requested
	if pages <= 0 {
		pages = d.DefaultPages
	}
	if pages <= 0 {
		pages = 1
	}
	if d.MaxPages > 0 && pages > d.MaxPages {
		pages = d.MaxPages
	}
	return pages
}

// DescriptorScraper is the one CountryScraper implementation; countries
// differ only in their Descriptor.
type DescriptorScraper struct {
	country countries.Country
	desc    Descriptor
	fetcher fetch.Fetcher
	policy  retry.Policy
	pacer   *ratelimit.AdaptiveRateLimiter
	now     func() time.Time
	logger  *slog.Logger
}

func NewDescriptorScraper(country countries.Country, desc Descriptor, fetcher fetch.Fetcher, policy retry.Policy, logger *slog.Logger) *DescriptorScraper {
	return &DescriptorScraper{
		country: country,
		desc:    desc,
		fetcher: fetcher,
		policy:  policy,
		pacer:   ratelimit.NewAdaptiveRateLimiter(desc.PageDelay, desc.PageDelay),
		now:     time.Now,
		logger:  logger.With("component", "scraper", "country", country.Code),
	}
}

func (s *DescriptorScraper) Code() string {
	return s.country.Code
}

func (s *DescriptorScraper) Scrape(ctx context.Context, opts Options) ([]models.Trade, error) {
	pages := s.desc.pages(opts.Pages)
	s.logger.Info("starting scrape", "pages", pages, "mode", s.desc.Mode)

	nctx := normalizer.Context{
		Country:    s.country.Code,
		SourceName: s.country.SourceName(),
		DateOrder:  s.desc.Profile.DateOrder,
		Now:        s.now(),
	}

	fetchOpts := s.desc.Fetch
	if len(fetchOpts.WaitForSelectors) == 0 {
		fetchOpts.WaitForSelectors = s.desc.Rows
	}
	if fetchOpts.ScreenshotName == "" {
		fetchOpts.ScreenshotName = s.country.Code + "-no-table"
	}

	s.pacer.Reset()

	var all []models.Trade
	for page := 1; page <= pages; page++ {
		if err := s.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		url := s.desc.BuildURL(page, opts)
		s.logger.Info("scraping page", "page", page, "of", pages, "url", url)

		doc, err := s.fetchPage(ctx, url, fetchOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}

		if !doc.SelectorFound {
			s.logger.Warn("no trades table found", "page", page, "url", url)
			break
		}

		match, err := selector.Resolve(doc.Doc.Selection, s.desc.Rows)
		if err != nil {
			var noMatch *selector.NoMatchError
			if errors.As(err, &noMatch) {
				s.logger.Warn("no rows matched", "page", page, "error", err)
				break
			}
			return nil, err
		}

		raws := extractor.Extract(match.Selection, s.desc.Profile, doc.URL)
		trades := normalizer.NormalizeAll(raws, nctx)
		all = append(all, trades...)

		s.logger.Info("page extracted",
			"page", page,
			"selector", match.Selector,
			"rows", match.Len(),
			"trades", len(trades))
	}

	s.logger.Info("scrape completed", "trades", len(all))
	return all, nil
}

// fetchPage wraps one navigation in the retry policy. A page that needed
// retries slows down the pacing of the following pages.
func (s *DescriptorScraper) fetchPage(ctx context.Context, url string, opts fetch.Options) (*fetch.Document, error) {
	var doc *fetch.Document
	retried := false

	err := retry.Do(ctx, s.policy, s.logger, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			retried = true
		}
		d, err := s.fetcher.Fetch(ctx, url, opts)
		if err != nil {
			var navErr *fetch.NavigationError
			if errors.As(err, &navErr) {
				navErr.Attempt = attempt
			}
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		s.pacer.RecordError()
		return nil, err
	}

	if retried {
		s.pacer.RecordError()
	} else {
		s.pacer.RecordSuccess()
	}
	return doc, nil
}

// StubScraper stands in for countries whose sources are not scraped yet.
type StubScraper struct {
	code   string
	logger *slog.Logger
}

func NewStubScraper(code string, logger *slog.Logger) *StubScraper {
	return &StubScraper{
		code:   code,
		logger: logger.With("component", "scraper", "country", code),
	}
}

func (s *StubScraper) Code() string {
	return s.code
}

func (s *StubScraper) Scrape(ctx context.Context, _ Options) ([]models.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logger.Info("scraper not implemented, returning no trades")
	return []models.Trade{}, nil
}
