// Package persister stores normalized trades without creating duplicates and
// keeps politician statistics in line with the stored trade set.
package persister

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/politician-trades/internal/models"
)

// Store is the storage contract. InsertTrade must be backed by a unique
// constraint on the dedup key and report inserted=false when it fires.
type Store interface {
	// FindTrade returns nil, nil when no trade has the key.
	FindTrade(ctx context.Context, key models.DedupKey) (*models.Trade, error)
	InsertTrade(ctx context.Context, trade *models.Trade) (bool, error)
	TradesByPolitician(ctx context.Context, country, name string) ([]models.Trade, error)
	// GetPolitician returns nil, nil when the politician does not exist.
	GetPolitician(ctx context.Context, country, name string) (*models.Politician, error)
	SavePolitician(ctx context.Context, p *models.Politician) error
}

type Result struct {
	Received           int `json:"received"`
	Inserted           int `json:"inserted"`
	Skipped            int `json:"skipped"`
	Invalid            int `json:"invalid"`
	PoliticiansUpdated int `json:"politicians_updated"`
}

type Persister struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, logger *slog.Logger) *Persister {
	return &Persister{
		store:  store,
		logger: logger.With("component", "persister"),
		now:    time.Now,
	}
}

type politicianKey struct {
	country string
	name    string
}

// Persist inserts every trade whose dedup key is not stored yet, then
// recomputes statistics for each politician that gained a trade. Errors are
// returned as they happen; trades inserted before the error stay stored.
func (p *Persister) Persist(ctx context.Context, trades []models.Trade) (Result, error) {
	result := Result{Received: len(trades)}

	var touched []politicianKey
	refs := make(map[politicianKey][]models.PoliticianRef)

	for i := range trades {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		t := trades[i]
		if t.Country == "" || t.Politician.Name == "" || t.Dates.Transaction.IsZero() {
			result.Invalid++
			continue
		}
		t.Dates.Transaction = models.DateOnly(t.Dates.Transaction)

		existing, err := p.store.FindTrade(ctx, t.DedupKey())
		if err != nil {
			return result, fmt.Errorf("failed to look up trade: %w", err)
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = p.now()
		}

		inserted, err := p.store.InsertTrade(ctx, &t)
		if err != nil {
			return result, fmt.Errorf("failed to insert trade: %w", err)
		}
		if !inserted {
			// Lost a race against a concurrent run; the unique index decided.
			result.Skipped++
			continue
		}
		result.Inserted++

		key := politicianKey{country: t.Country, name: t.Politician.Name}
		if _, ok := refs[key]; !ok {
			touched = append(touched, key)
		}
		refs[key] = append(refs[key], t.Politician)
	}

	for _, key := range touched {
		if err := p.refreshPolitician(ctx, key, refs[key]); err != nil {
			return result, err
		}
		result.PoliticiansUpdated++
	}

	p.logger.Info("trades persisted",
		"received", result.Received,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"invalid", result.Invalid,
		"politicians", result.PoliticiansUpdated)

	return result, nil
}

func (p *Persister) refreshPolitician(ctx context.Context, key politicianKey, refs []models.PoliticianRef) error {
	pol, err := p.store.GetPolitician(ctx, key.country, key.name)
	if err != nil {
		return fmt.Errorf("failed to get politician %s/%s: %w", key.country, key.name, err)
	}
	if pol == nil {
		pol = models.NewPolitician(key.country, models.PoliticianRef{Name: key.name})
		pol.ID = uuid.New().String()
	}
	for _, ref := range refs {
		pol.MergeProfile(ref)
	}

	trades, err := p.store.TradesByPolitician(ctx, key.country, key.name)
	if err != nil {
		return fmt.Errorf("failed to load trades for %s/%s: %w", key.country, key.name, err)
	}
	pol.Statistics = models.ComputeStatistics(trades)
	pol.UpdatedAt = p.now()

	if err := p.store.SavePolitician(ctx, pol); err != nil {
		return fmt.Errorf("failed to save politician %s/%s: %w", key.country, key.name, err)
	}
	return nil
}
