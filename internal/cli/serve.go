package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/maltedev/politician-trades/internal/api"
	"github.com/maltedev/politician-trades/internal/config"
	"github.com/maltedev/politician-trades/internal/jobs"
	"github.com/maltedev/politician-trades/internal/queue"
)

var withScheduler bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API with the background job worker",
	Long: `Starts the HTTP API. Scrape requests are queued as jobs and run by a
background worker. With the postgres store the outbox relay runs alongside
(disable with RELAY_ENABLED=false). --schedule also runs the periodic plan.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), serve)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&withScheduler, "schedule", false, "also run the scrape plan every SCHEDULE_INTERVAL")
	rootCmd.AddCommand(serveCmd)
}

// background tracks the goroutines that run next to the HTTP server. The
// store and browser are closed only after Wait returns.
type background struct {
	wg     sync.WaitGroup
	logger *slog.Logger
}

func (b *background) Go(name string, fn func() error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("background task stopped with error", "task", name, "error", err)
		}
	}()
}

func (b *background) Wait() {
	b.wg.Wait()
}

func serve(ctx context.Context, a *app) error {
	bg := &background{logger: a.logger}
	defer bg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Job worker
	q := queue.NewInMemoryQueue()
	defer q.Close()
	jobManager := jobs.NewManager(a.orchestrator, q, a.logger)
	bg.Go("job worker", func() error {
		jobManager.StartWorker(ctx)
		return nil
	})

	var outbox api.OutboxCounter
	if a.db != nil {
		outbox = a.db.Outbox()

		if a.cfg.Relay.Enabled {
			relay, err := a.newRelay(ctx)
			if err != nil {
				return err
			}
			bg.Go("relay", func() error { return relay.Start(ctx) })
		}
	} else if a.cfg.Store.Driver == config.StoreSQLite {
		a.logger.Info("sqlite store: trade events are not published")
	}

	if withScheduler {
		s, err := a.newScheduler()
		if err != nil {
			return err
		}
		bg.Go("scheduler", func() error { return s.Start(ctx) })
	}

	handlers := api.NewHandlers(api.Deps{
		Store:    a.store,
		Jobs:     jobManager,
		Scrapers: a.orchestrator,
		Registry: a.registry,
		Outbox:   outbox,
		Logger:   a.logger,
	})

	router := api.NewRouter(handlers, api.RouterConfig{
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		CacheTTL:       a.cfg.API.CacheTTL,
		RateLimit:      a.cfg.API.RateLimit,
		RateLimitBurst: a.cfg.API.RateLimitBurst,
		RequestTimeout: a.cfg.API.RequestTimeout,
	}, a.logger)

	server := &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", server.Addr, "store", a.cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown failed", "error", err)
		return err
	}

	bg.Wait()
	a.logger.Info("server stopped")
	return nil
}
