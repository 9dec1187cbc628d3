package main

import (
	"context"
	"net"
	"os"

	"golang.org/x/sync/errgroup"

	"budgetblocks/internal/amqp"
	"budgetblocks/internal/cache"
	"budgetblocks/internal/cli"
	apphttp "budgetblocks/internal/http"
	"budgetblocks/internal/log"
	"budgetblocks/internal/query"
	"budgetblocks/internal/services"
	"budgetblocks/internal/worker"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	res := cli.OpenBackend(ctx, logger, cfg)
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", log.FieldError, err.Error())
			}
		}()
	}

	store, seeded, err := cli.LoadLedger(ctx, cfg, res.Backend, logger)
	if err != nil {
		logger.Error("Failed to load ledger", log.FieldError, err.Error())
		os.Exit(1)
	}

	// Seeding does not bump the version, so the persister would skip it.
	if seeded > 0 {
		snap, _ := store.Snapshot()
		if err := res.Backend.SaveSnapshot(ctx, snap); err != nil {
			logger.Error("Failed to persist seeded master lists", log.FieldError, err.Error())
			os.Exit(1)
		}
	}
	persister := worker.NewPersister(store, res.Backend, cfg.PersistDebounce, logger)
	persister.MarkSaved(store.Version())
	store.OnChange(persister.Notify)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer client.Close()
		store.AddSink(client)
		logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled, ledger events are not published")
	}

	engine := query.NewEngine(store, cfg.FilterCacheSize, cfg.FilterCacheTTL, logger)
	caches := cache.NewManager(cfg.FilterCacheTTL, logger)
	caches.Register(engine.Cache())

	rollover, err := services.NewBandRollover(store, cfg.BandRolloverCron, logger)
	if err != nil {
		logger.Error("Invalid band rollover schedule", log.FieldError, err.Error())
		os.Exit(1)
	}

	deps := apphttp.Deps{
		Store:  store,
		Engine: engine,
		Prefs:  res.Backend,
		Events: res.Backend,
		Logger: logger,
	}
	if p, ok := res.Backend.(pinger); ok {
		deps.Ready = p.Ping
	}
	srv := apphttp.NewServer(net.JoinHostPort("", cfg.Port), deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return persister.Run(gctx) })
	g.Go(func() error { return caches.Run(gctx) })
	g.Go(func() error { return rollover.Run(gctx) })
	g.Go(func() error { return srv.Limiter().Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	logger.Info("Starting budgetblocks server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldVersion, store.Version())
	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
