package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamClient is the subset of the redis client used by the consumer.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Handler receives each decoded trade event. Returning an error leaves the
// message unacknowledged so it is delivered again.
type Handler func(ctx context.Context, event *TradeDisclosedPayload) error

type ConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	// Countries limits delivery to these country codes. Empty means all.
	Countries []string
	Block     time.Duration
	Count     int64
}

type Consumer struct {
	client    StreamClient
	handler   Handler
	config    ConsumerConfig
	countries map[string]bool
	logger    *slog.Logger
}

func NewConsumer(client StreamClient, handler Handler, config ConsumerConfig, logger *slog.Logger) *Consumer {
	if config.Stream == "" {
		config.Stream = TradeStream
	}
	if config.Group == "" {
		config.Group = "trade-consumer-group"
	}
	if config.Consumer == "" {
		config.Consumer = "consumer-1"
	}
	if config.Block <= 0 {
		config.Block = 5 * time.Second
	}
	if config.Count <= 0 {
		config.Count = 10
	}

	var countries map[string]bool
	if len(config.Countries) > 0 {
		countries = make(map[string]bool, len(config.Countries))
		for _, c := range config.Countries {
			countries[strings.ToLower(c)] = true
		}
	}

	return &Consumer{
		client:    client,
		handler:   handler,
		config:    config,
		countries: countries,
		logger:    logger.With("component", "trade_consumer"),
	}
}

// Run reads the stream through the consumer group until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.config.Stream, c.config.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("starting consumer", "stream", c.config.Stream, "group", c.config.Group)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to read from stream", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *Consumer) poll(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.config.Group,
		Consumer: c.config.Consumer,
		Streams:  []string{c.config.Stream, ">"},
		Count:    c.config.Count,
		Block:    c.config.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if err := c.handle(ctx, msg); err != nil {
				c.logger.Error("failed to process message", "id", msg.ID, "error", err)
				continue
			}
			if err := c.client.XAck(ctx, c.config.Stream, c.config.Group, msg.ID).Err(); err != nil {
				c.logger.Error("failed to acknowledge message", "id", msg.ID, "error", err)
			}
		}
	}
	return nil
}

// handle returns nil for messages that are skipped so they get acknowledged.
func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) error {
	if eventType, _ := msg.Values["event_type"].(string); eventType != string(EventTypeTradeDisclosed) {
		return nil
	}
	if c.countries != nil {
		country, _ := msg.Values["country"].(string)
		if !c.countries[strings.ToLower(country)] {
			return nil
		}
	}

	event, err := DecodeMessage(msg)
	if err != nil {
		c.logger.Warn("dropping malformed message", "id", msg.ID, "error", err)
		return nil
	}
	return c.handler(ctx, event)
}

// DecodeMessage extracts the trade payload of a stream entry.
func DecodeMessage(msg redis.XMessage) (*TradeDisclosedPayload, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing data field")
	}

	var env Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, fmt.Errorf("failed to parse data: %w", err)
	}
	if env.Payload.TradeID == "" {
		return nil, fmt.Errorf("event %s has no trade id", env.ID)
	}
	return &env.Payload, nil
}
