package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/politician-trades/internal/models"
)

func TestNewTradeDisclosed(t *testing.T) {
	disclosed := time.Date(2025, 11, 14, 0, 0, 0, 0, time.UTC)
	trade := &models.Trade{
		ID:         "7d7c5c1e-5f5e-4c1a-9f0b-1c2d3e4f5a6b",
		Country:    "usa",
		Politician: models.PoliticianRef{Name: "Jane Doe", Party: models.StringPtr("Democrat")},
		Trade: models.TradeDetail{
			Type:    models.TradeTypePurchase,
			Ticker:  models.StringPtr("NVDA"),
			Size:    models.StringPtr("1K–15K"),
			SizeMin: models.Float64Ptr(1000),
			SizeMax: models.Float64Ptr(15000),
		},
		Dates:    models.TradeDates{Transaction: time.Date(2025, 10, 30, 0, 0, 0, 0, time.UTC), Disclosure: &disclosed},
		Metadata: models.TradeMetadata{Source: "Capitol Trades"},
	}
	now := time.Date(2025, 11, 15, 9, 30, 0, 0, time.UTC)

	payload := NewTradeDisclosed(trade, now)
	assert.NotEmpty(t, payload.EventID)
	assert.Equal(t, "TRADE_DISCLOSED", payload.EventType)
	assert.Equal(t, "2025-10-30", payload.TransactionDate)
	assert.Equal(t, "2025-11-14", *payload.DisclosureDate)
	assert.Equal(t, Source, payload.Source)

	data, err := payload.Marshal()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Jane Doe", decoded["politician"])
	assert.Equal(t, "purchase", decoded["trade_type"])
	assert.Equal(t, "NVDA", decoded["ticker"])
	assert.Equal(t, 15000.0, decoded["size_max"])
	assert.Equal(t, "Capitol Trades", decoded["data_source"])
	assert.NotContains(t, decoded, "asset_name")
}

func TestTradeDisclosedPayload_MarshalRequiresTradeID(t *testing.T) {
	payload := NewTradeDisclosed(&models.Trade{Country: "usa"}, time.Now())
	_, err := payload.Marshal()
	assert.Error(t, err)
}

func TestEnvelope_StreamValues(t *testing.T) {
	env := &Envelope{
		ID:            "0b5e8f0c-2d7a-4c55-9b1e-6f1a2b3c4d5e",
		Type:          string(EventTypeTradeDisclosed),
		AggregateType: AggregateTypeTrade,
		AggregateID:   "trade-9",
		Timestamp:     "2025-11-15T09:30:00Z",
		Payload:       TradeDisclosedPayload{TradeID: "trade-9", Country: "uk", Politician: "Rishi Sunak"},
		Metadata:      Metadata{Source: Source, OutboxID: "0b5e8f0c-2d7a-4c55-9b1e-6f1a2b3c4d5e", TargetStream: TradeStream},
	}

	values, err := env.StreamValues()
	require.NoError(t, err)
	assert.Equal(t, "TRADE_DISCLOSED", values["type"])
	assert.Equal(t, "TRADE_DISCLOSED", values["event_type"])
	assert.Equal(t, "trade-9", values["aggregate_id"])
	assert.Equal(t, env.ID, values["original_id"])
	assert.Equal(t, "uk", values["country"])

	payload, err := DecodeMessage(redis.XMessage{ID: "1-0", Values: values})
	require.NoError(t, err)
	assert.Equal(t, env.Payload, *payload)

	t.Run("no country field without a country", func(t *testing.T) {
		env.Payload.Country = ""
		values, err := env.StreamValues()
		require.NoError(t, err)
		assert.NotContains(t, values, "country")
	})
}
