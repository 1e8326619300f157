// Package sqlite is a single-file trade store for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maltedev/politician-trades/internal/models"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	// Every connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger.With("component", "sqlite")}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("database ready", "path", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		country TEXT NOT NULL,
		politician_name TEXT NOT NULL,
		politician_party TEXT,
		politician_chamber TEXT,
		politician_district TEXT,
		politician_image_url TEXT,
		trade_type TEXT NOT NULL,
		ticker TEXT,
		asset_name TEXT,
		asset_type TEXT NOT NULL,
		size TEXT,
		size_min REAL,
		size_max REAL,
		price REAL,
		transaction_date TEXT NOT NULL,
		disclosure_date TEXT,
		filed_date TEXT,
		source TEXT NOT NULL,
		source_url TEXT,
		document_id TEXT,
		notes TEXT,
		date_uncertain BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_dedup
		ON trades (country, politician_name, transaction_date, COALESCE(ticker, ''));
	CREATE INDEX IF NOT EXISTS idx_trades_politician ON trades (country, politician_name);
	CREATE INDEX IF NOT EXISTS idx_trades_transaction_date ON trades (transaction_date);

	CREATE TABLE IF NOT EXISTS politicians (
		id TEXT PRIMARY KEY,
		country TEXT NOT NULL,
		name TEXT NOT NULL,
		party TEXT,
		chamber TEXT,
		district TEXT,
		image_url TEXT,
		total_trades INTEGER NOT NULL DEFAULT 0,
		total_purchases INTEGER NOT NULL DEFAULT 0,
		total_sales INTEGER NOT NULL DEFAULT 0,
		estimated_value_min REAL NOT NULL DEFAULT 0,
		estimated_value_max REAL NOT NULL DEFAULT 0,
		last_trade_date TEXT,
		average_days_to_disclose INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (country, name)
	);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

const tradeColumns = `id, country, politician_name, politician_party, politician_chamber,
	politician_district, politician_image_url, trade_type, ticker, asset_name, asset_type,
	size, size_min, size_max, price, transaction_date, disclosure_date, filed_date,
	source, source_url, document_id, notes, date_uncertain, created_at`

func (s *Store) FindTrade(ctx context.Context, key models.DedupKey) (*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
		WHERE country = ? AND politician_name = ? AND transaction_date = ? AND COALESCE(ticker, '') = ?`

	row := s.db.QueryRowContext(ctx, query,
		key.Country, key.PoliticianName, key.TransactionDate.Format(dateLayout), key.Ticker)

	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find trade: %w", err)
	}
	return t, nil
}

// InsertTrade reports false when the dedup index already holds the trade.
func (s *Store) InsertTrade(ctx context.Context, t *models.Trade) (bool, error) {
	query := `INSERT INTO trades (` + tradeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`

	res, err := s.db.ExecContext(ctx, query,
		t.ID, t.Country, t.Politician.Name, t.Politician.Party, t.Politician.Chamber,
		t.Politician.District, t.Politician.ImageURL,
		string(t.Trade.Type), t.Trade.Ticker, t.Trade.AssetName, string(t.Trade.AssetType),
		t.Trade.Size, t.Trade.SizeMin, t.Trade.SizeMax, t.Trade.Price,
		t.Dates.Transaction.Format(dateLayout), formatDate(t.Dates.Disclosure), formatDate(t.Dates.Filed),
		t.Metadata.Source, t.Metadata.SourceURL, t.Metadata.DocumentID, t.Metadata.Notes,
		t.Metadata.DateUncertain, t.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert trade: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *Store) TradesByPolitician(ctx context.Context, country, name string) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
		WHERE country = ? AND politician_name = ?
		ORDER BY transaction_date DESC, created_at DESC`

	return s.queryTrades(ctx, query, country, name)
}

func (s *Store) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *Store) ListTrades(ctx context.Context, f models.TradeFilter) (models.TradePage, error) {
	f.Normalize()

	var where []string
	var args []any
	if f.Country != "" {
		where = append(where, "LOWER(country) = ?")
		args = append(args, f.Country)
	}
	if f.Politician != "" {
		where = append(where, "LOWER(politician_name) LIKE '%' || LOWER(?) || '%'")
		args = append(args, f.Politician)
	}
	if f.Ticker != "" {
		where = append(where, "ticker = ?")
		args = append(args, f.Ticker)
	}
	if f.Size != "" {
		where = append(where, "size LIKE '%' || ? || '%'")
		args = append(args, f.Size)
	}
	if f.StartDate != nil {
		where = append(where, "transaction_date >= ?")
		args = append(args, f.StartDate.Format(dateLayout))
	}
	if f.EndDate != nil {
		where = append(where, "transaction_date <= ?")
		args = append(args, f.EndDate.Format(dateLayout))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	page := models.TradePage{Page: f.Page, Limit: f.Limit, Trades: []models.Trade{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`+clause, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("failed to count trades: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM trades%s ORDER BY %s %s NULLS LAST, created_at DESC, id LIMIT ? OFFSET ?`,
		tradeColumns, clause, tradeSortColumns[f.SortBy], strings.ToUpper(f.SortOrder))

	trades, err := s.queryTrades(ctx, query, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return page, err
	}
	page.Trades = trades
	return page, nil
}

func (s *Store) queryTrades(ctx context.Context, query string, args ...any) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(row scanner) (*models.Trade, error) {
	var (
		t                               models.Trade
		party, chamber, district, image sql.NullString
		tradeType, assetType            string
		ticker, assetName, size         sql.NullString
		sizeMin, sizeMax, price         sql.NullFloat64
		txDate                          string
		disclosure, filed               sql.NullString
		sourceURL, documentID, notes    sql.NullString
		createdAt                       string
	)

	err := row.Scan(
		&t.ID, &t.Country, &t.Politician.Name, &party, &chamber, &district, &image,
		&tradeType, &ticker, &assetName, &assetType,
		&size, &sizeMin, &sizeMax, &price,
		&txDate, &disclosure, &filed,
		&t.Metadata.Source, &sourceURL, &documentID, &notes, &t.Metadata.DateUncertain, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	t.Politician.Party = nullString(party)
	t.Politician.Chamber = nullString(chamber)
	t.Politician.District = nullString(district)
	t.Politician.ImageURL = nullString(image)

	t.Trade.Type = models.TradeType(tradeType)
	t.Trade.AssetType = models.AssetType(assetType)
	t.Trade.Ticker = nullString(ticker)
	t.Trade.AssetName = nullString(assetName)
	t.Trade.Size = nullString(size)
	t.Trade.SizeMin = nullFloat(sizeMin)
	t.Trade.SizeMax = nullFloat(sizeMax)
	t.Trade.Price = nullFloat(price)

	if t.Dates.Transaction, err = time.Parse(dateLayout, txDate); err != nil {
		return nil, fmt.Errorf("bad transaction_date %q: %w", txDate, err)
	}
	t.Dates.Disclosure = parseDate(disclosure)
	t.Dates.Filed = parseDate(filed)

	t.Metadata.SourceURL = nullString(sourceURL)
	t.Metadata.DocumentID = nullString(documentID)
	t.Metadata.Notes = nullString(notes)
	t.CreatedAt, _ = time.Parse(timestampLayout, createdAt)

	return &t, nil
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(dateLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return &nf.Float64
}
