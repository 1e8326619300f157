// Package normalizer maps raw extracted rows onto the canonical Trade shape.
// It has no side effects; everything time dependent comes in through Context.
package normalizer

import (
	"strings"
	"time"

	"github.com/maltedev/politician-trades/internal/extractor"
	"github.com/maltedev/politician-trades/internal/models"
	"github.com/maltedev/politician-trades/internal/parser"
)

// Context carries what a row cannot know about itself.
type Context struct {
	Country    string
	SourceName string
	DateOrder  parser.NumericOrder
	// Now replaces transaction dates that cannot be parsed.
	Now time.Time
}

func Normalize(raw extractor.RawTrade, c Context) models.Trade {
	sizeMin, sizeMax := sizeBounds(raw)

	transaction, uncertain := parser.ParseDateOrNow(raw.TransactionDate, c.DateOrder, c.Now)

	return models.Trade{
		Country: strings.ToLower(strings.TrimSpace(c.Country)),
		Politician: models.PoliticianRef{
			Name:     parser.CleanText(raw.PoliticianName),
			Party:    models.StringPtr(raw.Party),
			Chamber:  models.StringPtr(raw.Chamber),
			District: models.StringPtr(raw.District),
			ImageURL: models.StringPtr(raw.PoliticianImageURL),
		},
		Trade: models.TradeDetail{
			Type:      parser.ClassifyTradeType(raw.TradeType),
			Ticker:    models.StringPtr(parser.CleanTicker(raw.Ticker)),
			AssetName: models.StringPtr(parser.CleanText(raw.AssetName)),
			AssetType: parser.ClassifyAssetType(raw.AssetType),
			Size:      sizeText(raw.Size),
			SizeMin:   sizeMin,
			SizeMax:   sizeMax,
			Price:     parser.ParseNumber(raw.Price),
		},
		Dates: models.TradeDates{
			Transaction: transaction,
			Disclosure:  optionalDate(raw.DisclosureDate, c.DateOrder),
			Filed:       optionalDate(raw.FiledDate, c.DateOrder),
		},
		Metadata: models.TradeMetadata{
			Source:        c.SourceName,
			SourceURL:     models.StringPtr(raw.SourceURL),
			DocumentID:    models.StringPtr(raw.DocumentID),
			Notes:         models.StringPtr(raw.Notes),
			DateUncertain: uncertain,
		},
	}
}

func NormalizeAll(raws []extractor.RawTrade, c Context) []models.Trade {
	trades := make([]models.Trade, 0, len(raws))
	for _, raw := range raws {
		trades = append(trades, Normalize(raw, c))
	}
	return trades
}

// sizeBounds prefers explicit bound fields and falls back to the free text
// bracket.
func sizeBounds(raw extractor.RawTrade) (*float64, *float64) {
	var rng parser.SizeRange
	if raw.Size != "" {
		rng = parser.ParseSize(raw.Size)
	}

	lo, hi := rng.Min, rng.Max
	if raw.SizeMin != "" {
		lo = raw.SizeMin
	}
	if raw.SizeMax != "" {
		hi = raw.SizeMax
	}
	return parser.ParseNumber(lo), parser.ParseNumber(hi)
}

func sizeText(s string) *string {
	s = parser.CleanText(s)
	if parser.IsNotAvailable(s) {
		return nil
	}
	return &s
}

func optionalDate(s string, order parser.NumericOrder) *time.Time {
	t, ok := parser.ParseDate(s, order)
	if !ok {
		return nil
	}
	return &t
}
