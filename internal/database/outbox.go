package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/politician-trades/internal/events"
	"github.com/maltedev/politician-trades/internal/models"
	"github.com/maltedev/politician-trades/internal/retry"
)

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessed  OutboxStatus = "processed"
	OutboxFailed     OutboxStatus = "failed"
	OutboxDeadLetter OutboxStatus = "dead_letter"
)

const (
	// MaxPublishAttempts failed publishes park an event as dead letter.
	MaxPublishAttempts = 5

	// claimLease is how long a claimed event stays hidden from other relays.
	claimLease = time.Minute
)

// OutboxEvent is one trade event waiting to be published to its stream.
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Country       string
	Payload       json.RawMessage
	TargetStream  string
	Status        OutboxStatus
	RetryCount    int
	ErrorMessage  *string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	NextRetryAt   *time.Time
}

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, country,
	payload, target_stream, status, retry_count, error_message,
	created_at, processed_at, next_retry_at`

// tradeOutboxEvent wraps the TRADE_DISCLOSED payload of a freshly stored
// trade.
func tradeOutboxEvent(t *models.Trade, now time.Time) (*OutboxEvent, error) {
	payload, err := events.NewTradeDisclosed(t, now).Marshal()
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		AggregateType: events.AggregateTypeTrade,
		AggregateID:   t.ID,
		EventType:     string(events.EventTypeTradeDisclosed),
		Country:       t.Country,
		Payload:       payload,
		TargetStream:  events.TradeStream,
	}, nil
}

func (e *OutboxEvent) validate() error {
	switch {
	case e.AggregateType == "":
		return errors.New("outbox event without aggregate type")
	case e.EventType == "":
		return errors.New("outbox event without event type")
	case len(e.Payload) == 0:
		return errors.New("outbox event without payload")
	}
	return nil
}

type OutboxRepository struct {
	db      *DB
	backoff retry.Policy
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{
		db: db,
		backoff: retry.Policy{
			MaxAttempts: MaxPublishAttempts,
			BaseDelay:   2 * time.Second,
			MaxDelay:    5 * time.Minute,
		},
	}
}

// InsertWithTx writes the event inside the caller's transaction, so it exists
// exactly when the trade it describes does.
func (r *OutboxRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	if err := event.validate(); err != nil {
		return err
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = OutboxPending
	}
	if event.TargetStream == "" {
		event.TargetStream = events.TradeStream
	}

	now := r.db.now()
	event.CreatedAt = now
	if event.NextRetryAt == nil {
		event.NextRetryAt = &now
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_event (`+outboxColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		event.ID, event.AggregateType, event.AggregateID, event.EventType, event.Country,
		event.Payload, event.TargetStream, string(event.Status), event.RetryCount, event.ErrorMessage,
		event.CreatedAt, event.ProcessedAt, event.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// Claim leases up to limit due events, oldest first. Claimed rows are pushed
// claimLease into the future, so concurrent relays never publish the same
// event twice while a lease holds.
func (r *OutboxRepository) Claim(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	now := r.db.now()
	rows, err := r.db.pool.Query(ctx, `
		UPDATE outbox_event SET next_retry_at = $1
		WHERE id IN (
			SELECT id FROM outbox_event
			WHERE status IN ($2, $3) AND next_retry_at <= $4
			ORDER BY created_at
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+outboxColumns,
		now.Add(claimLease), string(OutboxPending), string(OutboxFailed), now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}

	claimed, err := pgx.CollectRows(rows, scanOutboxEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to scan outbox events: %w", err)
	}

	// RETURNING does not keep the subquery order.
	sort.SliceStable(claimed, func(i, j int) bool {
		return claimed[i].CreatedAt.Before(claimed[j].CreatedAt)
	})
	return claimed, nil
}

func scanOutboxEvent(row pgx.CollectableRow) (*OutboxEvent, error) {
	var (
		e      OutboxEvent
		status string
	)
	err := row.Scan(
		&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Country,
		&e.Payload, &e.TargetStream, &status, &e.RetryCount, &e.ErrorMessage,
		&e.CreatedAt, &e.ProcessedAt, &e.NextRetryAt,
	)
	e.Status = OutboxStatus(status)
	return &e, err
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE outbox_event
		SET status = $1, processed_at = $2, error_message = NULL
		WHERE id = $3`,
		string(OutboxProcessed), r.db.now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event not found: %s", id)
	}
	return nil
}

// MarkFailed records a failed publish and schedules the next attempt with
// exponential backoff. The MaxPublishAttempts-th failure parks the event as
// dead letter.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, publishErr error) error {
	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		var retries int
		err := tx.QueryRow(ctx,
			`SELECT retry_count FROM outbox_event WHERE id = $1 FOR UPDATE`, id).Scan(&retries)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("event not found: %s", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get retry count: %w", err)
		}

		retries++
		status := OutboxFailed
		if retries >= r.backoff.MaxAttempts {
			status = OutboxDeadLetter
		}
		next := r.db.now().Add(r.backoff.Delay(retries))

		_, err = tx.Exec(ctx, `
			UPDATE outbox_event
			SET status = $1, retry_count = $2, error_message = $3, next_retry_at = $4
			WHERE id = $5`,
			string(status), retries, publishErr.Error(), next, id)
		if err != nil {
			return fmt.Errorf("failed to mark event as failed: %w", err)
		}
		return nil
	})
}

// RequeueDeadLetters makes dead letter events due again with a fresh retry
// budget. An empty country requeues all of them.
func (r *OutboxRepository) RequeueDeadLetters(ctx context.Context, country string) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE outbox_event
		SET status = $1, retry_count = 0, error_message = NULL, next_retry_at = $2
		WHERE status = $3 AND ($4::text = '' OR country = LOWER($4::text))`,
		string(OutboxPending), r.db.now(), string(OutboxDeadLetter), country)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue dead letter events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Counts is the outbox backlog reported by the health endpoint.
type Counts struct {
	Pending    int64 `json:"pending"`
	DeadLetter int64 `json:"dead_letter"`
}

func (r *OutboxRepository) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN ($1, $2)),
			COUNT(*) FILTER (WHERE status = $3)
		FROM outbox_event`,
		string(OutboxPending), string(OutboxFailed), string(OutboxDeadLetter),
	).Scan(&c.Pending, &c.DeadLetter)
	if err != nil {
		return c, fmt.Errorf("failed to count outbox events: %w", err)
	}
	return c, nil
}
