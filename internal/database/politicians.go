package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/politician-trades/internal/models"
)

const politicianColumns = `id, country, name, party, chamber, district, image_url,
	total_trades, total_purchases, total_sales, estimated_value_min, estimated_value_max,
	last_trade_date, average_days_to_disclose, created_at, updated_at`

func (db *DB) GetPolitician(ctx context.Context, country, name string) (*models.Politician, error) {
	p, err := scanPolitician(db.pool.QueryRow(ctx,
		`SELECT `+politicianColumns+` FROM politicians WHERE country = $1 AND name = $2`,
		country, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get politician: %w", err)
	}
	return p, nil
}

// SavePolitician upserts on (country, name). Identity columns of the first
// save are kept, and a NULL party, chamber, district or image never replaces
// a stored value.
func (db *DB) SavePolitician(ctx context.Context, p *models.Politician) error {
	query := `
		INSERT INTO politicians (` + politicianColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (country, name) DO UPDATE SET
			party = COALESCE(EXCLUDED.party, politicians.party),
			chamber = COALESCE(EXCLUDED.chamber, politicians.chamber),
			district = COALESCE(EXCLUDED.district, politicians.district),
			image_url = COALESCE(EXCLUDED.image_url, politicians.image_url),
			total_trades = EXCLUDED.total_trades,
			total_purchases = EXCLUDED.total_purchases,
			total_sales = EXCLUDED.total_sales,
			estimated_value_min = EXCLUDED.estimated_value_min,
			estimated_value_max = EXCLUDED.estimated_value_max,
			last_trade_date = EXCLUDED.last_trade_date,
			average_days_to_disclose = EXCLUDED.average_days_to_disclose,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	st := p.Statistics
	err := db.pool.QueryRow(ctx, query,
		p.ID, p.Country, p.Name, p.Party, p.Chamber, p.District, p.ImageURL,
		st.TotalTrades, st.TotalPurchases, st.TotalSales,
		st.EstimatedTotalValue.Min, st.EstimatedTotalValue.Max,
		st.LastTradeDate, st.AverageDaysToDisclose, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save politician: %w", err)
	}
	return nil
}

func (db *DB) ListPoliticians(ctx context.Context, f models.PoliticianFilter) (models.PoliticianPage, error) {
	f.Normalize()

	var w where
	if f.Country != "" {
		w.add("LOWER(country) = %s", f.Country)
	}
	if f.Name != "" {
		w.add("name ILIKE '%%' || %s || '%%'", f.Name)
	}

	page := models.PoliticianPage{Page: f.Page, Limit: f.Limit, Politicians: []models.Politician{}}
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM politicians`+w.clause(), w.args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("failed to count politicians: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM politicians%s ORDER BY total_trades DESC, name ASC LIMIT %s OFFSET %s`,
		politicianColumns, w.clause(), w.param(f.Limit), w.param(f.Offset()))

	rows, err := db.pool.Query(ctx, query, w.args...)
	if err != nil {
		return page, fmt.Errorf("failed to query politicians: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPolitician(rows)
		if err != nil {
			return page, fmt.Errorf("failed to scan politician: %w", err)
		}
		page.Politicians = append(page.Politicians, *p)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("error iterating rows: %w", err)
	}
	return page, nil
}

func scanPolitician(row pgx.Row) (*models.Politician, error) {
	var p models.Politician
	st := &p.Statistics

	err := row.Scan(
		&p.ID, &p.Country, &p.Name, &p.Party, &p.Chamber, &p.District, &p.ImageURL,
		&st.TotalTrades, &st.TotalPurchases, &st.TotalSales,
		&st.EstimatedTotalValue.Min, &st.EstimatedTotalValue.Max,
		&st.LastTradeDate, &st.AverageDaysToDisclose, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
