package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/politician-trades/internal/models"
)

var (
	ErrCountryNotFound = errors.New("country not found")
	ErrCountryDisabled = errors.New("country scraper disabled")
)

// CountryScraper scrapes one country's disclosure source into normalized
// trades. Pages are fetched sequentially and returned in page order.
type CountryScraper interface {
	Code() string
	Scrape(ctx context.Context, opts Options) ([]models.Trade, error)
}

type Options struct {
	// Pages is the number of listing pages to walk. Zero uses the scraper's
	// default.
	Pages int `json:"pages,omitempty"`
	// TxRange filters by trade size bracket where the source supports it.
	TxRange string `json:"tx_range,omitempty"`
}

// ScraperError is a country level failure. It never aborts a batch.
type ScraperError struct {
	Country string
	Err     error
}

func (e *ScraperError) Error() string {
	return fmt.Sprintf("scraper %s: %v", e.Country, e.Err)
}

func (e *ScraperError) Unwrap() error {
	return e.Err
}
