package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/politician-trades/internal/models"
)

const tradeColumns = `id, country, politician_name, politician_party, politician_chamber,
	politician_district, politician_image_url, trade_type, ticker, asset_name, asset_type,
	size, size_min, size_max, price, transaction_date, disclosure_date, filed_date,
	source, source_url, document_id, notes, date_uncertain, created_at`

func (db *DB) FindTrade(ctx context.Context, key models.DedupKey) (*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
		WHERE country = $1 AND politician_name = $2 AND transaction_date = $3 AND COALESCE(ticker, '') = $4`

	t, err := scanTrade(db.pool.QueryRow(ctx, query,
		key.Country, key.PoliticianName, key.TransactionDate, key.Ticker))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find trade: %w", err)
	}
	return t, nil
}

// InsertTrade stores the trade and its TRADE_DISCLOSED outbox event in one
// transaction. It reports false, and writes no event, when the dedup index
// already holds the trade.
func (db *DB) InsertTrade(ctx context.Context, t *models.Trade) (bool, error) {
	query := `INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT DO NOTHING`

	inserted := false
	err := db.Transaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query,
			t.ID, t.Country, t.Politician.Name, t.Politician.Party, t.Politician.Chamber,
			t.Politician.District, t.Politician.ImageURL,
			string(t.Trade.Type), t.Trade.Ticker, t.Trade.AssetName, string(t.Trade.AssetType),
			t.Trade.Size, t.Trade.SizeMin, t.Trade.SizeMax, t.Trade.Price,
			t.Dates.Transaction, t.Dates.Disclosure, t.Dates.Filed,
			t.Metadata.Source, t.Metadata.SourceURL, t.Metadata.DocumentID, t.Metadata.Notes,
			t.Metadata.DateUncertain, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		inserted = true

		event, err := tradeOutboxEvent(t, db.now())
		if err != nil {
			return err
		}
		return db.outbox.InsertWithTx(ctx, tx, event)
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (db *DB) TradesByPolitician(ctx context.Context, country, name string) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
		WHERE country = $1 AND politician_name = $2
		ORDER BY transaction_date DESC, created_at DESC`

	return db.queryTrades(ctx, query, country, name)
}

func (db *DB) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	tradeID, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}

	t, err := scanTrade(db.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1`, tradeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade %s: %w", id, err)
	}
	return t, nil
}

var tradeSortColumns = map[string]string{
	models.SortByDate:       "transaction_date",
	models.SortBySize:       "size_max",
	models.SortByPolitician: "politician_name",
	models.SortByTicker:     "ticker",
}

func (db *DB) ListTrades(ctx context.Context, f models.TradeFilter) (models.TradePage, error) {
	f.Normalize()

	var w where
	if f.Country != "" {
		w.add("LOWER(country) = %s", f.Country)
	}
	if f.Politician != "" {
		w.add("politician_name ILIKE '%%' || %s || '%%'", f.Politician)
	}
	if f.Ticker != "" {
		w.add("ticker = %s", f.Ticker)
	}
	if f.Size != "" {
		w.add("size ILIKE '%%' || %s || '%%'", f.Size)
	}
	if f.StartDate != nil {
		w.add("transaction_date >= %s", *f.StartDate)
	}
	if f.EndDate != nil {
		w.add("transaction_date <= %s", *f.EndDate)
	}

	page := models.TradePage{Page: f.Page, Limit: f.Limit, Trades: []models.Trade{}}
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades`+w.clause(), w.args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("failed to count trades: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM trades%s ORDER BY %s %s NULLS LAST, created_at DESC, id LIMIT %s OFFSET %s`,
		tradeColumns, w.clause(), tradeSortColumns[f.SortBy], strings.ToUpper(f.SortOrder),
		w.param(f.Limit), w.param(f.Offset()))

	trades, err := db.queryTrades(ctx, query, w.args...)
	if err != nil {
		return page, err
	}
	page.Trades = trades
	return page, nil
}

func (db *DB) queryTrades(ctx context.Context, query string, args ...any) ([]models.Trade, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := []models.Trade{}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return trades, nil
}

func scanTrade(row pgx.Row) (*models.Trade, error) {
	var (
		t                    models.Trade
		tradeType, assetType string
	)

	err := row.Scan(
		&t.ID, &t.Country, &t.Politician.Name, &t.Politician.Party, &t.Politician.Chamber,
		&t.Politician.District, &t.Politician.ImageURL,
		&tradeType, &t.Trade.Ticker, &t.Trade.AssetName, &assetType,
		&t.Trade.Size, &t.Trade.SizeMin, &t.Trade.SizeMax, &t.Trade.Price,
		&t.Dates.Transaction, &t.Dates.Disclosure, &t.Dates.Filed,
		&t.Metadata.Source, &t.Metadata.SourceURL, &t.Metadata.DocumentID, &t.Metadata.Notes,
		&t.Metadata.DateUncertain, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Trade.Type = models.TradeType(tradeType)
	t.Trade.AssetType = models.AssetType(assetType)
	return &t, nil
}

// where collects filter conditions with positional parameters.
type where struct {
	conds []string
	args  []any
}

func (w *where) param(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

// add appends a condition; format has a single %s for the parameter.
func (w *where) add(format string, v any) {
	w.conds = append(w.conds, fmt.Sprintf(format, w.param(v)))
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
