package models

import (
	"strings"
	"time"
)

type TradeType string

const (
	TradeTypePurchase TradeType = "purchase"
	TradeTypeSale     TradeType = "sale"
	TradeTypeExchange TradeType = "exchange"
	TradeTypeOther    TradeType = "other"
)

func (t TradeType) Valid() bool {
	switch t {
	case TradeTypePurchase, TradeTypeSale, TradeTypeExchange, TradeTypeOther:
		return true
	}
	return false
}

type AssetType string

const (
	AssetTypeStock          AssetType = "stock"
	AssetTypeBond           AssetType = "bond"
	AssetTypeOption         AssetType = "option"
	AssetTypeMutualFund     AssetType = "mutual_fund"
	AssetTypeCryptocurrency AssetType = "cryptocurrency"
	AssetTypeOther          AssetType = "other"
)

func (a AssetType) Valid() bool {
	switch a {
	case AssetTypeStock, AssetTypeBond, AssetTypeOption, AssetTypeMutualFund,
		AssetTypeCryptocurrency, AssetTypeOther:
		return true
	}
	return false
}

// Trade is a single disclosed transaction in canonical form.
type Trade struct {
	ID         string        `json:"id"`
	Country    string        `json:"country"`
	Politician PoliticianRef `json:"politician"`
	Trade      TradeDetail   `json:"trade"`
	Dates      TradeDates    `json:"dates"`
	Metadata   TradeMetadata `json:"metadata"`
	CreatedAt  time.Time     `json:"created_at"`
}

// PoliticianRef is the denormalized politician snapshot carried by a trade.
type PoliticianRef struct {
	Name     string  `json:"name"`
	Party    *string `json:"party,omitempty"`
	Chamber  *string `json:"chamber,omitempty"`
	District *string `json:"district,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}

type TradeDetail struct {
	Type      TradeType `json:"type"`
	Ticker    *string   `json:"ticker,omitempty"`
	AssetName *string   `json:"asset_name,omitempty"`
	AssetType AssetType `json:"asset_type"`
	Size      *string   `json:"size,omitempty"`
	SizeMin   *float64  `json:"size_min,omitempty"`
	SizeMax   *float64  `json:"size_max,omitempty"`
	Price     *float64  `json:"price,omitempty"`
}

type TradeDates struct {
	Transaction time.Time  `json:"transaction"`
	Disclosure  *time.Time `json:"disclosure,omitempty"`
	Filed       *time.Time `json:"filed,omitempty"`
}

type TradeMetadata struct {
	Source     string  `json:"source"`
	SourceURL  *string `json:"source_url,omitempty"`
	DocumentID *string `json:"document_id,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	// DateUncertain is set when the transaction date could not be parsed
	// and the scrape time was substituted.
	DateUncertain bool `json:"date_uncertain,omitempty"`
}

// DedupKey identifies a logical trade across scrape runs.
type DedupKey struct {
	Country         string
	PoliticianName  string
	TransactionDate time.Time
	Ticker          string
}

func (t *Trade) DedupKey() DedupKey {
	key := DedupKey{
		Country:         t.Country,
		PoliticianName:  t.Politician.Name,
		TransactionDate: DateOnly(t.Dates.Transaction),
	}
	if t.Trade.Ticker != nil {
		key.Ticker = *t.Trade.Ticker
	}
	return key
}

func (t *Trade) TickerOrEmpty() string {
	if t.Trade.Ticker == nil {
		return ""
	}
	return *t.Trade.Ticker
}

// DateOnly truncates a timestamp to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StringPtr returns nil for blank strings.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func Float64Ptr(f float64) *float64 {
	return &f
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
