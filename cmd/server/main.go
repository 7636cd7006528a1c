package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/playpcd/pcdtrainer/internal/analytics"
	"github.com/playpcd/pcdtrainer/internal/cache"
	"github.com/playpcd/pcdtrainer/internal/config"
	"github.com/playpcd/pcdtrainer/internal/database"
	"github.com/playpcd/pcdtrainer/internal/handler/health"
	"github.com/playpcd/pcdtrainer/internal/logging"
	"github.com/playpcd/pcdtrainer/internal/migrations"
	"github.com/playpcd/pcdtrainer/internal/server"
	"github.com/playpcd/pcdtrainer/internal/synth"
	"github.com/playpcd/pcdtrainer/internal/workers"
)

const reaperSchedule = "@every 1m"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, logCloser := logging.New(stdout, logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logCloser.Close()

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	checks := map[string]health.Checker{"sqlite": dbChecker{db}}

	// --- Redis (optional) ---
	var scenarioCache cache.ScenarioCache = cache.Noop{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.ScenarioCacheTTL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rc.Close()
		scenarioCache = rc
		checks["redis"] = rc
		logger.Info("connected to redis")
	}

	// --- NATS (optional) ---
	var publisher workers.EventPublisher = analytics.NewLog(logger)
	if cfg.NATSURL != "" {
		nc, err := analytics.NewNATS(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer nc.Close()
		publisher = nc
		checks["nats"] = nc
		logger.Info("connected to nats", "stream", analytics.StreamName)
	}

	// --- Game services ---
	store := server.NewDocStore(db)
	loader := server.NewScenarioLoader(store, scenarioCache, cfg.ScenarioCacheTTL, logger)

	if err := server.Seed(ctx, logger, store, loader, server.SeedOptions{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		Demo:          cfg.SeedDemo,
	}); err != nil {
		return err
	}

	dispatcher := workers.NewDispatcher(workers.NewDispatcherOptions{
		Results:   store,
		Publisher: publisher,
		Logger:    logger,
	})

	broker := server.NewBroker()
	sessions := server.NewSessions(server.SessionsOptions{
		Timeout:   cfg.GameTimeout,
		Rule:      cfg.GameRule,
		Logger:    logger,
		Reports:   dispatcher,
		Analytics: dispatcher,
		Broker:    broker,
	})

	reaper := server.NewReaper(sessions, cfg.SessionTTL, logger)
	if err := reaper.Start(reaperSchedule); err != nil {
		return err
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Store:    store,
		Loader:   loader,
		Sessions: sessions,
		Broker:   broker,
		Synth:    synth.New(synth.Options{DensityThreshold: cfg.LabelDensityThreshold}),
		SPADir:   cfg.SPADir,
	}, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	// The dispatcher outlives the HTTP server so that rounds ended by the
	// shutdown itself are still flushed.
	dctx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	dispatched := make(chan error, 1)
	go func() { dispatched <- dispatcher.Start(dctx) }()

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	err = g.Wait()

	<-reaper.Stop().Done()
	sessions.CloseAll()
	stopDispatcher()
	select {
	case derr := <-dispatched:
		err = errors.Join(err, derr)
	case <-time.After(10 * time.Second):
		logger.Warn("dispatcher flush timed out")
	}
	logger.Info("shutdown complete")
	return err
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }
