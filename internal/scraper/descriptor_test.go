package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/politician-trades/internal/countries"
	"github.com/maltedev/politician-trades/internal/extractor"
	"github.com/maltedev/politician-trades/internal/fetch"
	"github.com/maltedev/politician-trades/internal/models"
	"github.com/maltedev/politician-trades/internal/retry"
)

// fakeFetcher serves canned HTML per URL and can fail the first attempts.
type fakeFetcher struct {
	pages    map[string]string
	failures map[string]int
	missing  map[string]bool
	requests []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, opts fetch.Options) (*fetch.Document, error) {
	f.requests = append(f.requests, url)
	if f.failures[url] > 0 {
		f.failures[url]--
		return nil, &fetch.NavigationError{URL: url, Err: errors.New("net::ERR_TIMED_OUT")}
	}
	html, ok := f.pages[url]
	if !ok {
		return nil, &fetch.NavigationError{URL: url, StatusCode: 404, Err: errors.New("not found")}
	}
	doc, err := fetch.NewDocument(url, html)
	if err != nil {
		return nil, err
	}
	doc.SelectorFound = !f.missing[url]
	return doc, nil
}

func pageURL(page int) string {
	return fmt.Sprintf("https://trades.test/list?page=%d", page)
}

func tradeRow(name, ticker, date string) string {
	return fmt.Sprintf(`<tr class="q-tr">
		<td class="politician-name">%s</td>
		<td class="issuer-name">%s Inc</td><td class="issuer-ticker">%s</td>
		<td><span class="tx-type tx-type--buy">buy</span></td>
		<td>1K–15K</td><td>%s</td>
	</tr>`, name, ticker, ticker, date)
}

func testDescriptor() Descriptor {
	return Descriptor{
		Mode:     ModeBrowser,
		BuildURL: func(page int, _ Options) string { return pageURL(page) },
		Rows:     []string{".q-tr", "tbody tr"},
		Profile: extractor.Profile{
			Name:       []string{".politician-name"},
			Ticker:     []string{".issuer-ticker"},
			AssetName:  []string{".issuer-name"},
			BuyMarkers: []string{".tx-type--buy"},
		},
		DefaultPages: 1,
		MaxPages:     5,
	}
}

var testCountry = countries.Country{
	Code:    "usa",
	Name:    "United States",
	Sources: []countries.Source{{Name: "Capitol Trades"}},
}

var fastRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func TestDescriptorScraper_PagesInOrder(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		pageURL(1): `<table><tbody>` + tradeRow("Jane Doe", "NVDA", "30 Oct 2025") + tradeRow("John Roe", "AAPL", "29 Oct 2025") + `</tbody></table>`,
		pageURL(2): `<table><tbody>` + tradeRow("Ann Poe", "MSFT", "28 Oct 2025") + `</tbody></table>`,
	}}

	s := NewDescriptorScraper(testCountry, testDescriptor(), f, fastRetry, slog.Default())
	trades, err := s.Scrape(context.Background(), Options{Pages: 2})
	require.NoError(t, err)

	require.Len(t, trades, 3)
	assert.Equal(t, []string{pageURL(1), pageURL(2)}, f.requests)

	names := []string{trades[0].Politician.Name, trades[1].Politician.Name, trades[2].Politician.Name}
	assert.Equal(t, []string{"Jane Doe", "John Roe", "Ann Poe"}, names)

	first := trades[0]
	assert.Equal(t, "usa", first.Country)
	assert.Equal(t, models.TradeTypePurchase, first.Trade.Type)
	assert.Equal(t, "Capitol Trades", first.Metadata.Source)
	assert.Equal(t, pageURL(1), models.Deref(first.Metadata.SourceURL))
	assert.Equal(t, 1000.0, *first.Trade.SizeMin)
	assert.Equal(t, 15000.0, *first.Trade.SizeMax)
}

func TestDescriptorScraper_StopsWhenNoRowsMatch(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		pageURL(1): `<table><tbody>` + tradeRow("Jane Doe", "NVDA", "30 Oct 2025") + `</tbody></table>`,
		pageURL(2): `<div class="empty">No trades</div>`,
		pageURL(3): `<table><tbody>` + tradeRow("Late Page", "TSLA", "01 Oct 2025") + `</tbody></table>`,
	}}

	s := NewDescriptorScraper(testCountry, testDescriptor(), f, fastRetry, slog.Default())
	trades, err := s.Scrape(context.Background(), Options{Pages: 3})
	require.NoError(t, err)

	assert.Len(t, trades, 1)
	assert.Equal(t, []string{pageURL(1), pageURL(2)}, f.requests)
}

func TestDescriptorScraper_StopsWhenTableNeverRendered(t *testing.T) {
	f := &fakeFetcher{
		pages: map[string]string{
			pageURL(1): `<table><tbody>` + tradeRow("Jane Doe", "NVDA", "30 Oct 2025") + `</tbody></table>`,
		},
		missing: map[string]bool{pageURL(1): true},
	}

	s := NewDescriptorScraper(testCountry, testDescriptor(), f, fastRetry, slog.Default())
	trades, err := s.Scrape(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestDescriptorScraper_Retries(t *testing.T) {
	t.Run("transient navigation errors are retried", func(t *testing.T) {
		f := &fakeFetcher{
			pages:    map[string]string{pageURL(1): `<table><tbody>` + tradeRow("Jane Doe", "NVDA", "30 Oct 2025") + `</tbody></table>`},
			failures: map[string]int{pageURL(1): 2},
		}

		s := NewDescriptorScraper(testCountry, testDescriptor(), f, fastRetry, slog.Default())
		trades, err := s.Scrape(context.Background(), Options{})
		require.NoError(t, err)
		assert.Len(t, trades, 1)
		assert.Len(t, f.requests, 3)
	})

	t.Run("exhausted retries fail the scrape", func(t *testing.T) {
		f := &fakeFetcher{
			pages:    map[string]string{pageURL(1): `<table></table>`},
			failures: map[string]int{pageURL(1): 5},
		}

		s := NewDescriptorScraper(testCountry, testDescriptor(), f, fastRetry, slog.Default())
		_, err := s.Scrape(context.Background(), Options{})
		require.Error(t, err)

		var navErr *fetch.NavigationError
		require.True(t, errors.As(err, &navErr))
		assert.Equal(t, 3, navErr.Attempt, "the last attempt is reported")
		assert.Contains(t, err.Error(), "failed after 3 attempts")
		assert.Contains(t, err.Error(), "(attempt 3)")
		assert.Len(t, f.requests, 3)
	})
}

func TestDescriptor_Pages(t *testing.T) {
	d := Descriptor{DefaultPages: 2, MaxPages: 5}

	assert.Equal(t, 2, d.pages(0))
	assert.Equal(t, 3, d.pages(3))
	assert.Equal(t, 5, d.pages(50))
	assert.Equal(t, 1, Descriptor{}.pages(0))
}

func TestUSADescriptor_BuildURL(t *testing.T) {
	build := descriptors["usa"].BuildURL

	assert.Equal(t, "https://www.capitoltrades.com/trades?page=1", build(1, Options{}))
	assert.Equal(t, "https://www.capitoltrades.com/trades?page=3&txRange=15K-50K", build(3, Options{TxRange: "15K-50K"}))
}

const capitolTradesPage = `<table class="q-table">
<thead><tr class="q-tr">
	<th>Politician</th><th>Traded Issuer</th><th>Published</th><th>Traded</th><th>Type</th><th>Size</th><th>Price</th><th></th>
</tr></thead>
<tbody>
<tr class="q-tr">
	<td class="q-td q-column--politician">
		<div class="q-avatar"><img src="/assets/politicians/P000197.jpg"></div>
		<h2 class="politician-name"><a href="/politicians/P000197">Nancy Pelosi</a></h2>
		<div class="politician-info">
			<span class="q-field party party--democrat">Democrat</span>
			<span class="q-field chamber chamber--house">House</span>
			<span class="q-field us-state-compact">CA</span>
		</div>
	</td>
	<td class="q-td q-column--issuer">
		<h3 class="q-fieldset issuer-name"><a href="/issuers/433382">Alphabet Inc</a></h3>
		<span class="q-field issuer-ticker">GOOGL:US</span>
	</td>
	<td class="q-td q-column--pubDate"><div class="q-value"><div>2 Jan</div><div>2025</div></div></td>
	<td class="q-td q-column--txDate"><div class="q-value"><div>20 Dec</div><div>2024</div></div></td>
	<td class="q-td q-column--txType"><span class="q-field tx-type tx-type--sell">sell</span></td>
	<td class="q-td q-column--value"><div class="trade-size"><span class="q-label">1M–5M</span></div></td>
	<td class="q-td q-column--price"><span class="q-field trade-price">$182.43</span></td>
	<td class="q-td"><a href="/trades/20003789342">Goto trade detail page.</a></td>
</tr>
</tbody></table>`

func TestUSADescriptor_CapitolTradesMarkup(t *testing.T) {
	desc := descriptors["usa"]
	desc.PageDelay = 0
	url := desc.BuildURL(1, Options{})

	f := &fakeFetcher{pages: map[string]string{url: capitolTradesPage}}
	s := NewDescriptorScraper(testCountry, desc, f, fastRetry, slog.Default())

	trades, err := s.Scrape(context.Background(), Options{Pages: 1})
	require.NoError(t, err)
	require.Len(t, trades, 1, "header row is not admitted")

	got := trades[0]
	assert.Equal(t, "Nancy Pelosi", got.Politician.Name)
	assert.Equal(t, "Democrat", models.Deref(got.Politician.Party))
	assert.Equal(t, "House", models.Deref(got.Politician.Chamber))
	assert.Equal(t, "CA", models.Deref(got.Politician.District))
	assert.Equal(t, "https://www.capitoltrades.com/assets/politicians/P000197.jpg", models.Deref(got.Politician.ImageURL))

	assert.Equal(t, models.TradeTypeSale, got.Trade.Type)
	assert.Equal(t, "GOOGL", models.Deref(got.Trade.Ticker))
	assert.Equal(t, "Alphabet Inc", models.Deref(got.Trade.AssetName))
	assert.Equal(t, models.AssetTypeStock, got.Trade.AssetType)
	assert.Equal(t, "1M–5M", models.Deref(got.Trade.Size))
	require.NotNil(t, got.Trade.SizeMin)
	require.NotNil(t, got.Trade.SizeMax)
	assert.Equal(t, 1_000_000.0, *got.Trade.SizeMin)
	assert.Equal(t, 5_000_000.0, *got.Trade.SizeMax)
	require.NotNil(t, got.Trade.Price)
	assert.InDelta(t, 182.43, *got.Trade.Price, 0.001)

	assert.Equal(t, time.Date(2024, time.December, 20, 0, 0, 0, 0, time.UTC), got.Dates.Transaction)
	require.NotNil(t, got.Dates.Disclosure)
	assert.Equal(t, time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC), *got.Dates.Disclosure)
	assert.False(t, got.Metadata.DateUncertain)

	assert.Equal(t, "20003789342", models.Deref(got.Metadata.DocumentID))
	assert.Equal(t, url, models.Deref(got.Metadata.SourceURL))
}

func TestNewFactory(t *testing.T) {
	registry := countries.Load(func(string) (string, bool) { return "", false })
	browserFetcher := &fakeFetcher{}

	factory := NewFactory(Deps{Browser: browserFetcher, Logger: slog.Default()})

	usa, _ := registry.Get("usa")
	s, err := factory(usa)
	require.NoError(t, err)
	assert.IsType(t, &DescriptorScraper{}, s)

	france, _ := registry.Get("france")
	s, err = factory(france)
	require.NoError(t, err)
	assert.IsType(t, &StubScraper{}, s)

	trades, err := s.Scrape(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, trades)

	uk, _ := registry.Get("uk")
	_, err = factory(uk)
	assert.Error(t, err, "static countries need a static fetcher")
}
