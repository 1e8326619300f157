// Package events defines the messages published for stored trades.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/politician-trades/internal/models"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeTradeDisclosed is published once per newly stored trade
	EventTypeTradeDisclosed EventType = "TRADE_DISCLOSED"
)

const (
	AggregateTypeTrade = "trade"
	TradeStream        = "stream:politician_trades"
	Source             = "politician-trades"
)

// TradeDisclosedPayload is the body of a TRADE_DISCLOSED event.
type TradeDisclosedPayload struct {
	EventID         string           `json:"event_id"`
	EventType       string           `json:"event_type"`
	Timestamp       time.Time        `json:"timestamp"`
	TradeID         string           `json:"trade_id"`
	Country         string           `json:"country"`
	Politician      string           `json:"politician"`
	Party           *string          `json:"party,omitempty"`
	TradeType       models.TradeType `json:"trade_type"`
	Ticker          *string          `json:"ticker,omitempty"`
	AssetName       *string          `json:"asset_name,omitempty"`
	Size            *string          `json:"size,omitempty"`
	SizeMin         *float64         `json:"size_min,omitempty"`
	SizeMax         *float64         `json:"size_max,omitempty"`
	TransactionDate string           `json:"transaction_date"`
	DisclosureDate  *string          `json:"disclosure_date,omitempty"`
	DataSource      string           `json:"data_source"`
	SourceURL       *string          `json:"source_url,omitempty"`
	Source          string           `json:"source"`
}

// NewTradeDisclosed builds the payload for a stored trade.
func NewTradeDisclosed(t *models.Trade, now time.Time) *TradeDisclosedPayload {
	p := &TradeDisclosedPayload{
		EventID:         uuid.New().String(),
		EventType:       string(EventTypeTradeDisclosed),
		Timestamp:       now,
		TradeID:         t.ID,
		Country:         t.Country,
		Politician:      t.Politician.Name,
		Party:           t.Politician.Party,
		TradeType:       t.Trade.Type,
		Ticker:          t.Trade.Ticker,
		AssetName:       t.Trade.AssetName,
		Size:            t.Trade.Size,
		SizeMin:         t.Trade.SizeMin,
		SizeMax:         t.Trade.SizeMax,
		TransactionDate: t.Dates.Transaction.Format("2006-01-02"),
		DataSource:      t.Metadata.Source,
		SourceURL:       t.Metadata.SourceURL,
		Source:          Source,
	}
	if t.Dates.Disclosure != nil {
		d := t.Dates.Disclosure.Format("2006-01-02")
		p.DisclosureDate = &d
	}
	return p
}

func (p *TradeDisclosedPayload) Marshal() (json.RawMessage, error) {
	if p.TradeID == "" {
		return nil, fmt.Errorf("trade disclosed event without trade id")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// Envelope is the JSON document stored in the "data" field of a stream entry.
type Envelope struct {
	ID            string                `json:"id"`
	Type          string                `json:"type"`
	AggregateType string                `json:"aggregate_type"`
	AggregateID   string                `json:"aggregate_id"`
	Timestamp     string                `json:"timestamp"`
	Payload       TradeDisclosedPayload `json:"payload"`
	Metadata      Metadata              `json:"metadata"`
}

type Metadata struct {
	Source       string `json:"source"`
	OutboxID     string `json:"outbox_id"`
	RetryCount   int    `json:"retry_count"`
	TargetStream string `json:"target_stream"`
}

// StreamValues renders the envelope as the fields of one stream entry.
// event_type and country are copied out of data so consumers can route
// without decoding it.
func (e *Envelope) StreamValues() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	values := map[string]interface{}{
		"data":           string(data),
		"type":           e.Type,
		"event_type":     e.Type,
		"aggregate_type": e.AggregateType,
		"aggregate_id":   e.AggregateID,
		"original_id":    e.ID,
		"timestamp":      e.Timestamp,
	}
	if e.Payload.Country != "" {
		values["country"] = e.Payload.Country
	}
	return values, nil
}
