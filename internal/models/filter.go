package models

import (
	"strings"
	"time"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Sort keys accepted by TradeFilter.SortBy.
const (
	SortByDate       = "date"
	SortBySize       = "size"
	SortByPolitician = "politician"
	SortByTicker     = "ticker"
)

// TradeFilter narrows a trade listing. Empty fields do not filter.
type TradeFilter struct {
	Country    string
	Politician string // case-insensitive substring
	Ticker     string
	Size       string // substring of the size label
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

// Normalize clamps paging and replaces unknown sort keys with defaults.
func (f *TradeFilter) Normalize() {
	f.Country = strings.ToLower(strings.TrimSpace(f.Country))
	f.Ticker = strings.ToUpper(strings.TrimSpace(f.Ticker))
	f.Page, f.Limit = clampPage(f.Page, f.Limit)

	switch f.SortBy {
	case SortByDate, SortBySize, SortByPolitician, SortByTicker:
	default:
		f.SortBy = SortByDate
	}
	f.SortOrder = normalizeOrder(f.SortOrder)
}

func (f *TradeFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type PoliticianFilter struct {
	Country string
	Name    string
	Page    int
	Limit   int
}

func (f *PoliticianFilter) Normalize() {
	f.Country = strings.ToLower(strings.TrimSpace(f.Country))
	f.Page, f.Limit = clampPage(f.Page, f.Limit)
}

func (f *PoliticianFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// TradePage is one page of a listing plus the unpaged total.
type TradePage struct {
	Trades []Trade `json:"trades"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}

type PoliticianPage struct {
	Politicians []Politician `json:"politicians"`
	Total       int          `json:"total"`
	Page        int          `json:"page"`
	Limit       int          `json:"limit"`
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func normalizeOrder(order string) string {
	if strings.EqualFold(order, "asc") {
		return "asc"
	}
	return "desc"
}
