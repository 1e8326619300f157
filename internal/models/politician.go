package models

import (
	"math"
	"time"
)

// Politician aggregates identity and rollup statistics, keyed by (Country, Name).
type Politician struct {
	ID         string     `json:"id"`
	Country    string     `json:"country"`
	Name       string     `json:"name"`
	Party      *string    `json:"party,omitempty"`
	Chamber    *string    `json:"chamber,omitempty"`
	District   *string    `json:"district,omitempty"`
	ImageURL   *string    `json:"image_url,omitempty"`
	Statistics Statistics `json:"statistics"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type Statistics struct {
	TotalTrades           int        `json:"total_trades"`
	TotalPurchases        int        `json:"total_purchases"`
	TotalSales            int        `json:"total_sales"`
	EstimatedTotalValue   ValueRange `json:"estimated_total_value"`
	LastTradeDate         *time.Time `json:"last_trade_date,omitempty"`
	AverageDaysToDisclose *int       `json:"average_days_to_disclose,omitempty"`
}

type ValueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NewPolitician creates a politician from the first trade that mentions it.
func NewPolitician(country string, ref PoliticianRef) *Politician {
	now := time.Now()
	return &Politician{
		Country:   country,
		Name:      ref.Name,
		Party:     ref.Party,
		Chamber:   ref.Chamber,
		District:  ref.District,
		ImageURL:  ref.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MergeProfile copies non-empty profile fields from ref. Existing values are
// never replaced with null.
func (p *Politician) MergeProfile(ref PoliticianRef) {
	if ref.Party != nil && *ref.Party != "" {
		p.Party = ref.Party
	}
	if ref.Chamber != nil && *ref.Chamber != "" {
		p.Chamber = ref.Chamber
	}
	if ref.District != nil && *ref.District != "" {
		p.District = ref.District
	}
	if ref.ImageURL != nil && *ref.ImageURL != "" {
		p.ImageURL = ref.ImageURL
	}
}

// ComputeStatistics rebuilds the rollup from the complete trade set of one politician.
func ComputeStatistics(trades []Trade) Statistics {
	var stats Statistics
	stats.TotalTrades = len(trades)

	var disclosureDays float64
	var disclosureCount int

	for i := range trades {
		t := &trades[i]
		switch t.Trade.Type {
		case TradeTypePurchase:
			stats.TotalPurchases++
		case TradeTypeSale:
			stats.TotalSales++
		}

		if t.Trade.SizeMin != nil {
			stats.EstimatedTotalValue.Min += *t.Trade.SizeMin
		}
		if t.Trade.SizeMax != nil {
			stats.EstimatedTotalValue.Max += *t.Trade.SizeMax
		}

		if t.Dates.Disclosure != nil && !t.Dates.Transaction.IsZero() {
			disclosureDays += t.Dates.Disclosure.Sub(t.Dates.Transaction).Hours() / 24
			disclosureCount++
		}

		if stats.LastTradeDate == nil || t.Dates.Transaction.After(*stats.LastTradeDate) {
			last := t.Dates.Transaction
			stats.LastTradeDate = &last
		}
	}

	if disclosureCount > 0 {
		avg := int(math.Round(disclosureDays / float64(disclosureCount)))
		stats.AverageDaysToDisclose = &avg
	}

	return stats
}
