// Package extractor turns rendered table rows into raw trade field bags.
//
// Every field is looked up through an ordered list of sub-selectors first.
// When none of them yields text, a regular expression is run over the row's
// flattened text instead, so rows keep producing data when a site drops the
// class names the selectors depend on.
package extractor

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/maltedev/politician-trades/internal/parser"
	"github.com/maltedev/politician-trades/internal/selector"
)

// Self as a field selector refers to the row element itself.
const Self = "."

// RawTrade is the unparsed text extracted from one row.
type RawTrade struct {
	PoliticianName     string
	PoliticianImageURL string
	Party              string
	Chamber            string
	District           string

	TradeType string
	Ticker    string
	AssetName string
	AssetType string
	Size      string
	SizeMin   string
	SizeMax   string
	Price     string

	TransactionDate string
	DisclosureDate  string
	FiledDate       string

	SourceURL  string
	DocumentID string
	Notes      string
}

// Defaults fill fields a site does not publish at all.
type Defaults struct {
	Chamber   string
	TradeType string
	AssetName string
	AssetType string
	Notes     string
}

// Profile describes where each field lives inside a row.
type Profile struct {
	Name     []string
	Image    []string
	Party    []string
	Chamber  []string
	District []string

	Ticker    []string
	AssetName []string
	AssetType []string
	TradeType []string

	BuyMarkers      []string
	SellMarkers     []string
	ExchangeMarkers []string

	Size    []string
	SizeMin []string
	SizeMax []string
	Price   []string

	TransactionDate []string
	DisclosureDate  []string
	FiledDate       []string

	// DateOrder is how the site writes all-numeric dates. Text fallbacks
	// only accept dates that parse in this order.
	DateOrder parser.NumericOrder

	// DocumentLink selectors point at an anchor whose last path segment is
	// the filing id.
	DocumentLink []string

	// PartyPattern is matched against the row text when no Party selector
	// yields a value.
	PartyPattern *regexp.Regexp

	Defaults Defaults

	// Limit caps the number of rows taken from one page. Zero means no cap.
	Limit int
}

var (
	nameFallback   = regexp.MustCompile(`^(\p{Lu}\p{Ll}[\p{L}'’.\-]*(?:\s+\p{Lu}\p{Ll}[\p{L}'’.\-]*){1,3})`)
	tickerFallback = regexp.MustCompile(`\b([A-Z]{2,5}(?::[A-Z]{2})?)\b`)
	typeFallback   = regexp.MustCompile(`(?i)\b(purchase|buy|bought|sale|sell|sold|exchange)\b`)
	priceFallback  = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d+)?`)

	sizeFallbacks = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[$€£]?\d[\d,.]*\s*[kmb]\s*[–—-]\s*[$€£]?\d[\d,.]*\s*[kmb]`),
		regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d+)?\s*[–—-]\s*[$€£]\s?\d[\d,]*(?:\.\d+)?`),
		regexp.MustCompile(`(?i)[$€£]?\d[\d,.]*\s*[kmb]\+`),
		regexp.MustCompile(`(?i)<\s*[$€£]?\d[\d,.]*\s*[kmb]?`),
	}

	dateFallbacks = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}[./]\d{1,2}[./]\d{4}\b`),
		regexp.MustCompile(`\b\d{1,2}\.?\s+\p{L}{3,}\.?,?\s+\d{4}\b`),
		regexp.MustCompile(`\b\p{L}{3,}\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`),
	}

	tickerStopwords = map[string]bool{
		"USD": true, "EUR": true, "GBP": true, "LLC": true, "INC": true, "CORP": true,
		"ETF": true, "PLC": true, "LTD": true, "NA": true, "AG": true, "SE": true,
	}
)

// Extract runs ExtractRow over every row and returns the admitted ones in
// document order.
func Extract(rows *goquery.Selection, p Profile, pageURL string) []RawTrade {
	var trades []RawTrade
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		raw, ok := ExtractRow(row, p, pageURL)
		if ok {
			trades = append(trades, raw)
		}
		return p.Limit <= 0 || len(trades) < p.Limit
	})
	return trades
}

// ExtractRow pulls all fields out of a single row. The second return value
// is false when the row fails admission.
func ExtractRow(row *goquery.Selection, p Profile, pageURL string) (RawTrade, bool) {
	flat := parser.CleanText(selector.FlattenText(row))

	r := RawTrade{
		PoliticianName:     text(row, p.Name),
		PoliticianImageURL: resolveURL(pageURL, attr(row, p.Image, "src")),
		Party:              text(row, p.Party),
		Chamber:            text(row, p.Chamber),
		District:           text(row, p.District),
		AssetName:          text(row, p.AssetName),
		AssetType:          text(row, p.AssetType),
		Ticker:             text(row, p.Ticker),
		SizeMin:            text(row, p.SizeMin),
		SizeMax:            text(row, p.SizeMax),
		Size:               text(row, p.Size),
		Price:              text(row, p.Price),
		TransactionDate:    text(row, p.TransactionDate),
		DisclosureDate:     text(row, p.DisclosureDate),
		FiledDate:          text(row, p.FiledDate),
		DocumentID:         documentID(attr(row, p.DocumentLink, "href")),
		SourceURL:          pageURL,
		Notes:              p.Defaults.Notes,
	}
	r.TradeType = tradeDirection(row, p, flat)

	rest := flat
	if r.PoliticianName == "" && !present(row, p.Name) {
		if m := nameFallback.FindStringSubmatch(firstChunk(row)); m != nil {
			r.PoliticianName = m[1]
		}
	}
	if r.Party == "" && p.PartyPattern != nil {
		r.Party = p.PartyPattern.FindString(flat)
	}
	if r.Ticker == "" && len(p.Ticker) > 0 && !present(row, p.Ticker) {
		r.Ticker = tickerFromText(flat)
	}
	switch {
	case r.Size != "":
		rest = strings.Replace(rest, r.Size, " ", 1)
	case r.SizeMin == "" && r.SizeMax == "" && !present(row, p.Size):
		for _, re := range sizeFallbacks {
			if loc := re.FindStringIndex(rest); loc != nil {
				r.Size = strings.TrimSpace(rest[loc[0]:loc[1]])
				rest = rest[:loc[0]] + " " + rest[loc[1]:]
				break
			}
		}
	}
	if r.Price == "" && !present(row, p.Price) {
		r.Price = priceFallback.FindString(rest)
	}
	if r.TransactionDate == "" && !present(row, p.TransactionDate) {
		r.TransactionDate = dateFromText(rest, r.DisclosureDate, p.DateOrder)
	}

	applyDefaults(&r, p.Defaults)

	return r, Admit(r)
}

// Admit reports whether a row carries the two fields a record cannot do
// without: who traded and what was traded.
func Admit(r RawTrade) bool {
	return strings.TrimSpace(r.PoliticianName) != "" && strings.TrimSpace(r.AssetName) != ""
}

func applyDefaults(r *RawTrade, d Defaults) {
	if r.Chamber == "" {
		r.Chamber = d.Chamber
	}
	if r.TradeType == "" {
		r.TradeType = d.TradeType
	}
	if r.AssetName == "" {
		r.AssetName = d.AssetName
	}
	if r.AssetType == "" {
		r.AssetType = d.AssetType
	}
}

func tradeDirection(row *goquery.Selection, p Profile, flat string) string {
	switch {
	case len(p.BuyMarkers) > 0 && selector.Exists(row, p.BuyMarkers):
		return "purchase"
	case len(p.SellMarkers) > 0 && selector.Exists(row, p.SellMarkers):
		return "sale"
	case len(p.ExchangeMarkers) > 0 && selector.Exists(row, p.ExchangeMarkers):
		return "exchange"
	}
	if t := text(row, p.TradeType); t != "" {
		return t
	}
	if m := typeFallback.FindString(flat); m != "" {
		return m
	}
	return ""
}

// tickerFromText prefers exchange qualified symbols ("NVDA:US") over bare
// upper case words, which are often state codes.
func tickerFromText(flat string) string {
	matches := tickerFallback.FindAllStringSubmatch(flat, -1)
	for _, qualified := range []bool{true, false} {
		for _, m := range matches {
			candidate := m[1]
			if strings.Contains(candidate, ":") != qualified {
				continue
			}
			if tickerStopwords[strings.SplitN(candidate, ":", 2)[0]] {
				continue
			}
			if t := parser.CleanTicker(candidate); t != "" {
				return t
			}
		}
	}
	return ""
}

// dateFromText returns the first date in s other than skip that parses in
// the given order.
func dateFromText(s, skip string, order parser.NumericOrder) string {
	for _, re := range dateFallbacks {
		for _, m := range re.FindAllString(s, -1) {
			if m == skip {
				continue
			}
			if _, ok := parser.ParseDate(m, order); ok {
				return m
			}
		}
	}
	return ""
}

// present reports whether any candidate element exists, even an empty one.
// Fallbacks only run for fields whose markup is missing entirely.
func present(row *goquery.Selection, candidates []string) bool {
	for _, c := range candidates {
		if c == Self || row.Find(c).Length() > 0 {
			return true
		}
	}
	return false
}

// firstChunk is the first non-empty text node of the row, usually the
// leading cell.
func firstChunk(row *goquery.Selection) string {
	var chunk string
	row.Find("*").AddSelection(row).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, n := range s.Contents().Nodes {
			if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
				chunk = parser.CleanText(n.Data)
				return false
			}
		}
		return true
	})
	return chunk
}

func text(row *goquery.Selection, candidates []string) string {
	for _, c := range candidates {
		if c == Self {
			if t := parser.CleanText(selector.FlattenText(row)); t != "" {
				return t
			}
			continue
		}
		if t := parser.CleanText(selector.FirstText(row, []string{c})); t != "" {
			return t
		}
	}
	return ""
}

func attr(row *goquery.Selection, candidates []string, name string) string {
	for _, c := range candidates {
		if c == Self {
			if v, ok := row.Attr(name); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
			continue
		}
		if v := selector.FirstAttr(row, []string{c}, name); v != "" {
			return v
		}
	}
	return ""
}

func documentID(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	id := path.Base(strings.TrimSuffix(u.Path, "/"))
	if id == "." || id == "/" {
		return ""
	}
	return id
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return r.String()
	}
	return b.ResolveReference(r).String()
}
