package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/politician-trades/internal/api"
	"github.com/maltedev/politician-trades/internal/browser"
	"github.com/maltedev/politician-trades/internal/config"
	"github.com/maltedev/politician-trades/internal/countries"
	"github.com/maltedev/politician-trades/internal/database"
	"github.com/maltedev/politician-trades/internal/fetch"
	"github.com/maltedev/politician-trades/internal/persister"
	"github.com/maltedev/politician-trades/internal/retry"
	"github.com/maltedev/politician-trades/internal/scraper"
	"github.com/maltedev/politician-trades/internal/sqlite"
)

// tradeStore is what both the postgres and the sqlite store provide.
type tradeStore interface {
	persister.Store
	api.Store
}

// app holds the wired components shared by the commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	registry     *countries.Registry
	store        tradeStore
	db           *database.DB // nil unless STORE=postgres
	fetcher      *browser.Fetcher
	orchestrator *scraper.Orchestrator

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: countries.Load(nil),
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	a.fetcher = browser.NewFetcher(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Scraper.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		ProxyServer:    cfg.Browser.ProxyServer,
	}, cfg.Scraper.DebugDir, logger)
	a.closers = append(a.closers, func() {
		if err := a.fetcher.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	})

	factory := scraper.NewFactory(scraper.Deps{
		Browser: a.fetcher,
		Static:  fetch.NewHTTPFetcher(cfg.Scraper.UserAgent, logger),
		Policy: retry.Policy{
			MaxAttempts: cfg.Scraper.MaxRetries,
			BaseDelay:   cfg.Scraper.RetryDelay,
			MaxDelay:    cfg.Scraper.MaxDelay,
		},
		Logger: logger,
	})

	a.orchestrator = scraper.NewOrchestrator(a.registry, factory, persister.New(a.store, logger), cfg.Scraper.CountryDelay, logger)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, a.cfg.Store.SQLitePath, a.logger)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.store = s
		a.closers = append(a.closers, func() { _ = s.Close() })

	default:
		c := a.cfg.Database
		db, err := database.New(ctx, database.Config{
			URL:      c.URL,
			Host:     c.Host,
			Port:     c.Port,
			User:     c.User,
			Password: c.Password,
			Database: c.Name,
			MaxConns: int32(c.MaxConns),
			MinConns: int32(c.MinConns),
		}, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		a.store = db
		a.db = db
		a.closers = append(a.closers, db.Close)
	}

	a.logger.Info("store ready", "driver", a.cfg.Store.Driver)
	return nil
}

// newRelay connects to redis and builds the outbox relay. Only the postgres
// store writes outbox events.
func (a *app) newRelay(ctx context.Context) (*database.Relay, error) {
	if a.db == nil {
		return nil, fmt.Errorf("the outbox relay needs STORE=%s", config.StorePostgres)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })

	return database.NewRelay(a.db, client, a.logger, database.RelayConfig{
		PollInterval: a.cfg.Relay.PollInterval,
		BatchSize:    a.cfg.Relay.BatchSize,
		StreamMaxLen: a.cfg.Redis.StreamMaxLen,
	}), nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
