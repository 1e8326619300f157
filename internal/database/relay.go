package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/politician-trades/internal/events"
)

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// OutboxRepo is the part of OutboxRepository the relay drives.
type OutboxRepo interface {
	Claim(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
}

// Relay moves TRADE_DISCLOSED events from the outbox table onto their
// redis stream.
type Relay struct {
	redis     RedisClient
	outbox    OutboxRepo
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	maxLen    int64
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// StreamMaxLen caps the stream length (approximate trim). Zero keeps everything.
	StreamMaxLen int64
}

// BatchResult counts the outcome of one relay pass.
type BatchResult struct {
	Claimed   int `json:"claimed"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

func NewRelay(db *DB, redisClient RedisClient, logger *slog.Logger, config RelayConfig) *Relay {
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	return &Relay{
		redis:     redisClient,
		outbox:    db.Outbox(),
		logger:    logger.With("component", "relay"),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
		maxLen:    config.StreamMaxLen,
	}
}

// Start runs a pass every poll interval until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay",
		"interval", r.interval,
		"batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("relay pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch and publishes it in creation order. A failed
// publish is recorded on its event and does not stop the batch. Events left
// over when ctx ends stay claimed until their lease expires.
func (r *Relay) RunOnce(ctx context.Context) (BatchResult, error) {
	var res BatchResult

	batch, err := r.outbox.Claim(ctx, r.batchSize)
	if err != nil {
		return res, fmt.Errorf("failed to claim events: %w", err)
	}
	res.Claimed = len(batch)

	for _, event := range batch {
		if ctx.Err() != nil {
			break
		}
		if err := r.relay(ctx, event); err != nil {
			res.Failed++
			r.logger.Error("failed to relay event",
				"event_id", event.ID,
				"aggregate_id", event.AggregateID,
				"country", event.Country,
				"retry_count", event.RetryCount,
				"error", err)
			continue
		}
		res.Published++
	}

	if res.Claimed > 0 {
		r.logger.Info("relay pass finished",
			"claimed", res.Claimed,
			"published", res.Published,
			"failed", res.Failed)
	}
	return res, nil
}

func (r *Relay) relay(ctx context.Context, event *OutboxEvent) error {
	if err := r.publish(ctx, event); err != nil {
		if markErr := r.outbox.MarkFailed(ctx, event.ID, err); markErr != nil {
			r.logger.Error("failed to mark event as failed",
				"event_id", event.ID,
				"error", markErr)
		}
		return err
	}

	if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
		return err
	}

	r.logger.Debug("event published",
		"event_id", event.ID,
		"trade_id", event.AggregateID,
		"country", event.Country,
		"target_stream", event.TargetStream)
	return nil
}

// envelope wraps the stored payload with the outbox bookkeeping consumers
// use for deduplication.
func envelope(event *OutboxEvent) (*events.Envelope, error) {
	var payload events.TradeDisclosedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return &events.Envelope{
		ID:            event.ID.String(),
		Type:          event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Timestamp:     event.CreatedAt.UTC().Format(time.RFC3339),
		Payload:       payload,
		Metadata: events.Metadata{
			Source:       events.Source,
			OutboxID:     event.ID.String(),
			RetryCount:   event.RetryCount,
			TargetStream: event.TargetStream,
		},
	}, nil
}

func (r *Relay) publish(ctx context.Context, event *OutboxEvent) error {
	env, err := envelope(event)
	if err != nil {
		return err
	}
	values, err := env.StreamValues()
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: event.TargetStream,
		Values: values,
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if _, err := r.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}
