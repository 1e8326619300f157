package normalizer

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/politician-trades/internal/extractor"
	"github.com/maltedev/politician-trades/internal/models"
	"github.com/maltedev/politician-trades/internal/parser"
)

var (
	now = time.Date(2025, 11, 3, 14, 25, 0, 0, time.UTC)
	usa = Context{Country: "USA", SourceName: "Capitol Trades", Now: now}
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize_RowToTrade(t *testing.T) {
	html := `<table><tr class="q-tr">
		<td class="name">Jane Doe</td>
		<td class="issuer">NVIDIA Corp</td>
		<td class="ticker">nvda:us</td>
		<td>Purchase</td>
		<td>15K–50K</td>
		<td>30 Oct 2025</td>
		<td>$135.50</td>
	</tr></table>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	profile := extractor.Profile{
		Name:      []string{".name"},
		AssetName: []string{".issuer"},
		Ticker:    []string{".ticker"},
	}
	raws := extractor.Extract(doc.Find(".q-tr"), profile, "https://www.capitoltrades.com/trades?page=1")
	require.Len(t, raws, 1)

	got := Normalize(raws[0], usa)

	want := models.Trade{
		Country: "usa",
		Politician: models.PoliticianRef{
			Name: "Jane Doe",
		},
		Trade: models.TradeDetail{
			Type:      models.TradeTypePurchase,
			Ticker:    models.StringPtr("NVDA"),
			AssetName: models.StringPtr("NVIDIA Corp"),
			AssetType: models.AssetTypeOther,
			Size:      models.StringPtr("15K–50K"),
			SizeMin:   models.Float64Ptr(15000),
			SizeMax:   models.Float64Ptr(50000),
			Price:     models.Float64Ptr(135.50),
		},
		Dates: models.TradeDates{
			Transaction: date(2025, time.October, 30),
		},
		Metadata: models.TradeMetadata{
			Source:    "Capitol Trades",
			SourceURL: models.StringPtr("https://www.capitoltrades.com/trades?page=1"),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_SizeBounds(t *testing.T) {
	tests := []struct {
		name    string
		raw     extractor.RawTrade
		wantMin *float64
		wantMax *float64
	}{
		{"compact", extractor.RawTrade{Size: "15K–50K"}, models.Float64Ptr(15000), models.Float64Ptr(50000)},
		{"explicit", extractor.RawTrade{Size: "$1,001 - $15,000"}, models.Float64Ptr(1001), models.Float64Ptr(15000)},
		{"lone amount", extractor.RawTrade{Size: "$250,000"}, models.Float64Ptr(250000), models.Float64Ptr(250000)},
		{"not available", extractor.RawTrade{Size: "N/A"}, nil, nil},
		{"open upper bound", extractor.RawTrade{Size: "50M+"}, models.Float64Ptr(50_000_000), nil},
		{"explicit fields win", extractor.RawTrade{Size: "1K–15K", SizeMin: "$2,000", SizeMax: "garbage"}, models.Float64Ptr(2000), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw, usa)
			assert.Equal(t, tt.wantMin, got.Trade.SizeMin)
			assert.Equal(t, tt.wantMax, got.Trade.SizeMax)
		})
	}
}

func TestNormalize_NumbersNeverDefaultToZero(t *testing.T) {
	got := Normalize(extractor.RawTrade{Price: "unknown"}, usa)
	assert.Nil(t, got.Trade.Price)

	got = Normalize(extractor.RawTrade{Price: "$0.00"}, usa)
	require.NotNil(t, got.Trade.Price)
	assert.Equal(t, 0.0, *got.Trade.Price)
}

func TestNormalize_Dates(t *testing.T) {
	want := date(2025, time.October, 30)

	for _, in := range []string{"30 Oct 2025", "Oct 30 2025", "10/30/2025", "2025-10-30"} {
		got := Normalize(extractor.RawTrade{TransactionDate: in}, usa)
		assert.Equal(t, want, got.Dates.Transaction, in)
		assert.False(t, got.Metadata.DateUncertain, in)
	}

	uk := usa
	uk.DateOrder = parser.OrderDMY
	got := Normalize(extractor.RawTrade{TransactionDate: "30/10/2025", DisclosureDate: "02/11/2025"}, uk)
	assert.Equal(t, want, got.Dates.Transaction)
	require.NotNil(t, got.Dates.Disclosure)
	assert.Equal(t, date(2025, time.November, 2), *got.Dates.Disclosure)

	got = Normalize(extractor.RawTrade{TransactionDate: "30.10.2025"}, usa)
	assert.Equal(t, want, got.Dates.Transaction)
}

func TestNormalize_UnparseableDateFallsBackToNow(t *testing.T) {
	got := Normalize(extractor.RawTrade{TransactionDate: "last week"}, usa)

	assert.Equal(t, date(2025, time.November, 3), got.Dates.Transaction)
	assert.True(t, got.Metadata.DateUncertain)
	assert.Nil(t, got.Dates.Disclosure)
}

func TestNormalize_Classification(t *testing.T) {
	tests := []struct {
		in   string
		want models.TradeType
	}{
		{"Purchase", models.TradeTypePurchase},
		{"BUY", models.TradeTypePurchase},
		{"Sale (Partial)", models.TradeTypeSale},
		{"sell", models.TradeTypeSale},
		{"Sold", models.TradeTypeSale},
		{"exchange", models.TradeTypeExchange},
		{"Disclosure", models.TradeTypeOther},
		{"", models.TradeTypeOther},
	}
	for _, tt := range tests {
		got := Normalize(extractor.RawTrade{TradeType: tt.in}, usa)
		assert.Equal(t, tt.want, got.Trade.Type, tt.in)
	}
}

func TestNormalize_TickerAndMetadata(t *testing.T) {
	got := Normalize(extractor.RawTrade{
		Ticker:     "N/A",
		AssetType:  "Stock Option",
		SourceURL:  "https://example.org/page",
		DocumentID: "",
		Party:      " ",
	}, Context{Country: "germany", SourceName: "Bundestag Abgeordnete", Now: now})

	assert.Nil(t, got.Trade.Ticker)
	assert.Nil(t, got.Politician.Party)
	assert.Nil(t, got.Metadata.DocumentID)
	assert.Equal(t, models.AssetTypeStock, got.Trade.AssetType)
	assert.Equal(t, "Bundestag Abgeordnete", got.Metadata.Source)
	assert.Equal(t, "germany", got.Country)

	got = Normalize(extractor.RawTrade{Ticker: "msft"}, usa)
	require.NotNil(t, got.Trade.Ticker)
	assert.Equal(t, "MSFT", *got.Trade.Ticker)
}

func TestNormalizeAll_KeepsOrder(t *testing.T) {
	raws := []extractor.RawTrade{
		{PoliticianName: "A", AssetName: "X"},
		{PoliticianName: "B", AssetName: "Y"},
	}
	got := NormalizeAll(raws, usa)

	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Politician.Name)
	assert.Equal(t, "B", got[1].Politician.Name)
}
