package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maltedev/politician-trades/internal/models"
)

const politicianColumns = `id, country, name, party, chamber, district, image_url,
	total_trades, total_purchases, total_sales, estimated_value_min, estimated_value_max,
	last_trade_date, average_days_to_disclose, created_at, updated_at`

func (s *Store) GetPolitician(ctx context.Context, country, name string) (*models.Politician, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+politicianColumns+` FROM politicians WHERE country = ? AND name = ?`,
		country, name)

	p, err := scanPolitician(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get politician: %w", err)
	}
	return p, nil
}

// SavePolitician upserts on (country, name). The stored id and created_at win
// over the ones on p; NULL identity fields keep what is stored.
func (s *Store) SavePolitician(ctx context.Context, p *models.Politician) error {
	query := `INSERT INTO politicians (` + politicianColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (country, name) DO UPDATE SET
			party = COALESCE(excluded.party, politicians.party),
			chamber = COALESCE(excluded.chamber, politicians.chamber),
			district = COALESCE(excluded.district, politicians.district),
			image_url = COALESCE(excluded.image_url, politicians.image_url),
			total_trades = excluded.total_trades,
			total_purchases = excluded.total_purchases,
			total_sales = excluded.total_sales,
			estimated_value_min = excluded.estimated_value_min,
			estimated_value_max = excluded.estimated_value_max,
			last_trade_date = excluded.last_trade_date,
			average_days_to_disclose = excluded.average_days_to_disclose,
			updated_at = excluded.updated_at`

	st := p.Statistics
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Country, p.Name, p.Party, p.Chamber, p.District, p.ImageURL,
		st.TotalTrades, st.TotalPurchases, st.TotalSales,
		st.EstimatedTotalValue.Min, st.EstimatedTotalValue.Max,
		formatDate(st.LastTradeDate), st.AverageDaysToDisclose,
		p.CreatedAt.UTC().Format(timestampLayout), p.UpdatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save politician: %w", err)
	}
	return nil
}

func (s *Store) ListPoliticians(ctx context.Context, f models.PoliticianFilter) (models.PoliticianPage, error) {
	f.Normalize()

	var where []string
	var args []any
	if f.Country != "" {
		where = append(where, "LOWER(country) = ?")
		args = append(args, f.Country)
	}
	if f.Name != "" {
		where = append(where, "LOWER(name) LIKE '%' || LOWER(?) || '%'")
		args = append(args, f.Name)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	page := models.PoliticianPage{Page: f.Page, Limit: f.Limit, Politicians: []models.Politician{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM politicians`+clause, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("failed to count politicians: %w", err)
	}

	query := `SELECT ` + politicianColumns + ` FROM politicians` + clause +
		` ORDER BY total_trades DESC, name ASC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset())...)
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

func scanPolitician(row scanner) (*models.Politician, error) {
	var (
		p                               models.Politician
		party, chamber, district, image sql.NullString
		lastTrade                       sql.NullString
		avgDays                         sql.NullInt64
		createdAt, updatedAt            string
	)

	err := row.Scan(
		&p.ID, &p.Country, &p.Name, &party, &chamber, &district, &image,
		&p.Statistics.TotalTrades, &p.Statistics.TotalPurchases, &p.Statistics.TotalSales,
		&p.Statistics.EstimatedTotalValue.Min, &p.Statistics.EstimatedTotalValue.Max,
		&lastTrade, &avgDays, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Party = nullString(party)
	p.Chamber = nullString(chamber)
	p.District = nullString(district)
	p.ImageURL = nullString(image)
	p.Statistics.LastTradeDate = parseDate(lastTrade)
	if avgDays.Valid {
		v := int(avgDays.Int64)
		p.Statistics.AverageDaysToDisclose = &v
	}
	p.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	p.UpdatedAt, _ = time.Parse(timestampLayout, updatedAt)

	return &p, nil
}
