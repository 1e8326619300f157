package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/maltedev/politician-trades/internal/extractor"
	"github.com/maltedev/politician-trades/internal/fetch"
	"github.com/maltedev/politician-trades/internal/parser"
)

const capitolTradesURL = "https://www.capitoltrades.com/trades"

// descriptors maps a country's scraper identifier to its site description.
// Countries without an entry get a StubScraper.
var descriptors = map[string]Descriptor{
	"usa": {
		Mode: ModeBrowser,
		BuildURL: func(page int, opts Options) string {
			q := url.Values{}
			q.Set("page", fmt.Sprint(page))
			if opts.TxRange != "" {
				q.Set("txRange", opts.TxRange)
			}
			return capitolTradesURL + "?" + q.Encode()
		},
		Fetch: fetch.Options{
			WaitUntil:        fetch.WaitNetworkIdle,
			Timeout:          30 * time.Second,
			SelectorTimeout:  10 * time.Second,
			HandleConsent:    true,
			ScreenshotOnMiss: true,
			WaitForSelectors: []string{".q-tr", "tbody tr"},
		},
		Rows: []string{".q-tr", "table tbody tr"},
		Profile: extractor.Profile{
			Name:     []string{".politician-name a", "h2.politician-name", ".q-fieldset a.text-default", ".politician-name"},
			Image:    []string{".q-avatar img", "img.avatar", "img"},
			Party:    []string{".q-field.party", `[class*="party--"]`},
			Chamber:  []string{".q-field.chamber"},
			District: []string{".q-field.us-state-compact", ".q-field.state"},

			Ticker:    []string{".issuer-ticker", `a[href*="/trades/stocks/"]`},
			AssetName: []string{".issuer-name a", ".issuer-name", ".q-cell.text-left"},
			TradeType: []string{".tx-type", ".q-cell.text-center"},

			BuyMarkers:      []string{".tx-type--buy"},
			SellMarkers:     []string{".tx-type--sell"},
			ExchangeMarkers: []string{".tx-type--exchange"},

			Size:  []string{".trade-size .q-label", ".trade-size", `[class*="trade-size"]`},
			Price: []string{".trade-price", ".q-field.trade-price"},

			TransactionDate: []string{".q-column--txDate", ".tx-date"},
			DisclosureDate:  []string{".q-column--pubDate", ".pub-date"},

			DocumentLink: []string{`a[href^="/trades/"]`},
			DateOrder:    parser.OrderMDY,
			Defaults:     extractor.Defaults{AssetType: "stock"},
		},
		DefaultPages: 1,
		MaxPages:     50,
		PageDelay:    2 * time.Second,
	},

	"germany": {
		Mode:     ModeBrowser,
		BuildURL: staticURL("https://www.bundestag.de/abgeordnete"),
		Fetch: fetch.Options{
			WaitUntil:     fetch.WaitNetworkIdle,
			Timeout:       30 * time.Second,
			WaitExtra:     5 * time.Second,
			HandleConsent: true,
		},
		Rows: []string{`a[href*="/abgeordnete/"]`, ".bt-teaser-person", `[class*="abgeordnete"]`, "article", ".person"},
		Profile: extractor.Profile{
			Name:         []string{"h3", "h2", ".name", "strong", extractor.Self},
			PartyPattern: regexp.MustCompile(`(?i)CDU|CSU|SPD|FDP|GRÜNE|DIE LINKE|AfD`),
			DocumentLink: []string{extractor.Self, "a"},
			DateOrder:    parser.OrderDMY,
			Defaults: extractor.Defaults{
				Chamber:   "Bundestag",
				TradeType: "Disclosure",
				AssetName: "Nebentätigkeiten/Vermögensangaben",
				AssetType: "other",
			},
			Limit: 50,
		},
		DefaultPages: 1,
		MaxPages:     1,
	},

	"uk": {
		Mode:     ModeStatic,
		BuildURL: staticURL("https://www.theyworkforyou.com/mps/"),
		Fetch: fetch.Options{
			Timeout: 30 * time.Second,
		},
		Rows: []string{".people-list__person", "table tr"},
		Profile: extractor.Profile{
			Name:     []string{".people-list__person__name", "td:nth-child(1)"},
			Image:    []string{".people-list__person__image img", "img"},
			Party:    []string{".people-list__person__party", "td:nth-child(2)"},
			District: []string{".people-list__person__constituency", "td:nth-child(3)"},
			DocumentLink: []string{
				extractor.Self,
				`a[href*="/mp/"]`,
			},
			DateOrder: parser.OrderDMY,
			Defaults: extractor.Defaults{
				Chamber:   "House of Commons",
				TradeType: "Disclosure",
				AssetName: "Financial Interest Registered",
				AssetType: "other",
			},
			Limit: 50,
		},
		DefaultPages: 1,
		MaxPages:     1,
	},

	"russia": {
		Mode:     ModeBrowser,
		BuildURL: staticURL("http://duma.gov.ru/duma/deputies/"),
		Fetch: fetch.Options{
			WaitUntil: fetch.WaitNetworkIdle,
			Timeout:   30 * time.Second,
			WaitExtra: 5 * time.Second,
		},
		Rows: []string{".deputy-item", ".deputy", `a[href*="/person/"]`, "article", ".person", `div[class*="deputy"]`},
		Profile: extractor.Profile{
			Name:         []string{".deputy-name", "h3", "h2", ".name", "strong", "a", extractor.Self},
			PartyPattern: regexp.MustCompile(`Единая Россия|КПРФ|ЛДПР|Справедливая Россия|United Russia|Communist Party|LDPR|Fair Russia`),
			DocumentLink: []string{extractor.Self, `a[href*="/person/"]`},
			DateOrder:    parser.OrderDMY,
			Defaults: extractor.Defaults{
				Chamber:   "State Duma",
				TradeType: "Declaration",
				AssetName: "Asset Declaration",
				AssetType: "other",
			},
			Limit: 50,
		},
		DefaultPages: 1,
		MaxPages:     1,
	},
}

func staticURL(u string) func(int, Options) string {
	return func(int, Options) string { return u }
}

// Implemented reports whether a working descriptor exists for a scraper
// identifier.
func Implemented(scraper string) bool {
	_, ok := descriptors[scraper]
	return ok
}
