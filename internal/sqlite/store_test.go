package sqlite

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/politician-trades/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTrade(country, name, ticker string, date time.Time) *models.Trade {
	disclosed := date.AddDate(0, 0, 20)
	return &models.Trade{
		ID:         uuid.New().String(),
		Country:    country,
		Politician: models.PoliticianRef{Name: name, Party: models.StringPtr("Democrat"), Chamber: models.StringPtr("House")},
		Trade: models.TradeDetail{
			Type:      models.TradeTypePurchase,
			Ticker:    models.StringPtr(ticker),
			AssetName: models.StringPtr(ticker + " Corp"),
			AssetType: models.AssetTypeStock,
			Size:      models.StringPtr("1K–15K"),
			SizeMin:   models.Float64Ptr(1000),
			SizeMax:   models.Float64Ptr(15000),
		},
		Dates:     models.TradeDates{Transaction: date, Disclosure: &disclosed},
		Metadata:  models.TradeMetadata{Source: "Capitol Trades", SourceURL: models.StringPtr("https://www.capitoltrades.com/trades?page=1")},
		CreatedAt: time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStore_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	trade := newTrade("usa", "Jane Doe", "NVDA", day(2025, 10, 30))

	inserted, err := s.InsertTrade(ctx, trade)
	require.NoError(t, err)
	assert.True(t, inserted)

	found, err := s.FindTrade(ctx, trade.DedupKey())
	require.NoError(t, err)
	require.NotNil(t, found)
	if diff := cmp.Diff(trade, found); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	missing, err := s.FindTrade(ctx, models.DedupKey{Country: "usa", PoliticianName: "Nobody", TransactionDate: day(2025, 1, 1)})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_UniqueIndexRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := newTrade("usa", "Jane Doe", "NVDA", day(2025, 10, 30))
	_, err := s.InsertTrade(ctx, first)
	require.NoError(t, err)

	dup := newTrade("usa", "Jane Doe", "NVDA", day(2025, 10, 30))
	inserted, err := s.InsertTrade(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	t.Run("null tickers collide with each other", func(t *testing.T) {
		a := newTrade("germany", "Max Mustermann", "", day(2025, 3, 1))
		b := newTrade("germany", "Max Mustermann", "", day(2025, 3, 1))
		require.Nil(t, a.Trade.Ticker)

		ok, err := s.InsertTrade(ctx, a)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.InsertTrade(ctx, b)
		require.NoError(t, err)
		assert.False(t, ok)

		found, err := s.FindTrade(ctx, b.DedupKey())
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, a.ID, found.ID)
	})

	t.Run("different ticker is a different trade", func(t *testing.T) {
		other := newTrade("usa", "Jane Doe", "AAPL", day(2025, 10, 30))
		ok, err := s.InsertTrade(ctx, other)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestStore_ListTrades(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	seed := []*models.Trade{
		newTrade("usa", "Jane Doe", "NVDA", day(2025, 10, 30)),
		newTrade("usa", "John Roe", "AAPL", day(2025, 10, 1)),
		newTrade("usa", "Jane Doe", "MSFT", day(2025, 9, 15)),
		newTrade("germany", "Max Mustermann", "", day(2025, 10, 20)),
	}
	seed[1].Trade.Size = models.StringPtr("15K–50K")
	seed[1].Trade.SizeMax = models.Float64Ptr(50000)
	seed[2].Trade.SizeMax = models.Float64Ptr(1000)
	for _, tr := range seed {
		_, err := s.InsertTrade(ctx, tr)
		require.NoError(t, err)
	}

	tickers := func(p models.TradePage) []string {
		out := make([]string, 0, len(p.Trades))
		for _, tr := range p.Trades {
			out = append(out, models.Deref(tr.Trade.Ticker))
		}
		return out
	}

	tests := []struct {
		name    string
		filter  models.TradeFilter
		want    []string
		wantTot int
	}{
		{"defaults sort newest first", models.TradeFilter{}, []string{"NVDA", "", "AAPL", "MSFT"}, 4},
		{"country", models.TradeFilter{Country: "USA"}, []string{"NVDA", "AAPL", "MSFT"}, 3},
		{"politician substring", models.TradeFilter{Politician: "jane"}, []string{"NVDA", "MSFT"}, 2},
		{"ticker", models.TradeFilter{Ticker: "aapl"}, []string{"AAPL"}, 1},
		{"size substring", models.TradeFilter{Size: "15K–50K"}, []string{"AAPL"}, 1},
		{"date range", models.TradeFilter{StartDate: ptrTime(day(2025, 10, 1)), EndDate: ptrTime(day(2025, 10, 20))}, []string{"", "AAPL"}, 2},
		{"ascending", models.TradeFilter{Country: "usa", SortOrder: "asc"}, []string{"MSFT", "AAPL", "NVDA"}, 3},
		{"by ticker", models.TradeFilter{Country: "usa", SortBy: "ticker", SortOrder: "asc"}, []string{"AAPL", "MSFT", "NVDA"}, 3},
		{"by size", models.TradeFilter{Country: "usa", SortBy: "size"}, []string{"AAPL", "NVDA", "MSFT"}, 3},
		{"paging", models.TradeFilter{Page: 2, Limit: 2}, []string{"AAPL", "MSFT"}, 4},
		{"unknown sort falls back to date", models.TradeFilter{Country: "usa", SortBy: "bogus"}, []string{"NVDA", "AAPL", "MSFT"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.ListTrades(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTot, page.Total)
			assert.Equal(t, tt.want, tickers(page))
		})
	}
}

func TestStore_GetTrade(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	trade := newTrade("usa", "Jane Doe", "NVDA", day(2025, 10, 30))
	_, err := s.InsertTrade(ctx, trade)
	require.NoError(t, err)

	got, err := s.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jane Doe", got.Politician.Name)

	got, err = s.GetTrade(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Politicians(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	created := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	avg := 12
	last := day(2025, 10, 30)
	p := &models.Politician{
		ID:      uuid.New().String(),
		Country: "usa",
		Name:    "Jane Doe",
		Party:   models.StringPtr("Democrat"),
		Statistics: models.Statistics{
			TotalTrades:           2,
			TotalPurchases:        1,
			TotalSales:            1,
			EstimatedTotalValue:   models.ValueRange{Min: 2000, Max: 30000},
			LastTradeDate:         &last,
			AverageDaysToDisclose: &avg,
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, s.SavePolitician(ctx, p))

	got, err := s.GetPolitician(ctx, "usa", "Jane Doe")
	require.NoError(t, err)
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("politician mismatch (-want +got):\n%s", diff)
	}

	t.Run("save updates in place", func(t *testing.T) {
		update := *p
		update.ID = uuid.New().String()
		update.Chamber = models.StringPtr("House")
		update.Statistics.TotalTrades = 3
		update.UpdatedAt = created.Add(time.Hour)
		require.NoError(t, s.SavePolitician(ctx, &update))

		got, err := s.GetPolitician(ctx, "usa", "Jane Doe")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID, "id of the first save is kept")
		assert.Equal(t, 3, got.Statistics.TotalTrades)
		assert.Equal(t, "House", models.Deref(got.Chamber))
		assert.True(t, got.CreatedAt.Equal(created))
	})

	t.Run("null identity fields keep stored values", func(t *testing.T) {
		update := *p
		update.Party = nil
		update.Chamber = nil
		update.District = models.StringPtr("CA-11")
		update.Statistics.TotalTrades = 5
		require.NoError(t, s.SavePolitician(ctx, &update))

		got, err := s.GetPolitician(ctx, "usa", "Jane Doe")
		require.NoError(t, err)
		assert.Equal(t, "Democrat", models.Deref(got.Party))
		assert.Equal(t, "House", models.Deref(got.Chamber))
		assert.Equal(t, "CA-11", models.Deref(got.District))
		assert.Equal(t, 5, got.Statistics.TotalTrades)
	})

	t.Run("missing politician", func(t *testing.T) {
		got, err := s.GetPolitician(ctx, "usa", "Nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("list", func(t *testing.T) {
		other := &models.Politician{ID: uuid.New().String(), Country: "germany", Name: "Max Mustermann", CreatedAt: created, UpdatedAt: created}
		require.NoError(t, s.SavePolitician(ctx, other))

		page, err := s.ListPoliticians(ctx, models.PoliticianFilter{})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		require.Len(t, page.Politicians, 2)
		assert.Equal(t, "Jane Doe", page.Politicians[0].Name)

		page, err = s.ListPoliticians(ctx, models.PoliticianFilter{Country: "Germany"})
		require.NoError(t, err)
		require.Len(t, page.Politicians, 1)
		assert.Equal(t, "Max Mustermann", page.Politicians[0].Name)
	})
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
