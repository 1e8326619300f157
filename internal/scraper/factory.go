package scraper

import (
	"fmt"
	"log/slog"

	"github.com/maltedev/politician-trades/internal/countries"
	"github.com/maltedev/politician-trades/internal/fetch"
	"github.com/maltedev/politician-trades/internal/retry"
)

// Factory creates the scraper for a country.
type Factory func(country countries.Country) (CountryScraper, error)

type Deps struct {
	Browser fetch.Fetcher
	Static  fetch.Fetcher
	Policy  retry.Policy
	Logger  *slog.Logger
}

func NewFactory(deps Deps) Factory {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Policy.MaxAttempts == 0 {
		deps.Policy = retry.DefaultPolicy()
	}

	return func(country countries.Country) (CountryScraper, error) {
		desc, ok := descriptors[country.Scraper]
		if !ok {
			return NewStubScraper(country.Code, deps.Logger), nil
		}

		fetcher := deps.Browser
		if desc.Mode == ModeStatic {
			fetcher = deps.Static
		}
		if fetcher == nil {
			return nil, fmt.Errorf("no %s fetcher configured for %s", desc.Mode, country.Code)
		}

		return NewDescriptorScraper(country, desc, fetcher, deps.Policy, deps.Logger), nil
	}
}
