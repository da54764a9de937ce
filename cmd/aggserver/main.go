package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/climate-agg-cache/internal/aggregate"
	"github.com/mohammed-shakir/climate-agg-cache/internal/cache/entrystore"
	"github.com/mohammed-shakir/climate-agg-cache/internal/cache/redisstore"
	"github.com/mohammed-shakir/climate-agg-cache/internal/cache/sweeper"
	"github.com/mohammed-shakir/climate-agg-cache/internal/catalog"
	"github.com/mohammed-shakir/climate-agg-cache/internal/coordinator"
	"github.com/mohammed-shakir/climate-agg-cache/internal/core/config"
	"github.com/mohammed-shakir/climate-agg-cache/internal/core/observability"
	"github.com/mohammed-shakir/climate-agg-cache/internal/core/server"
	"github.com/mohammed-shakir/climate-agg-cache/internal/health"
	"github.com/mohammed-shakir/climate-agg-cache/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/climate-agg-cache/internal/logger"
	"github.com/mohammed-shakir/climate-agg-cache/internal/rawstore/clickhousestore"
	"github.com/mohammed-shakir/climate-agg-cache/internal/window"
)

var Version = "dev"

func main() {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Component: "aggserver",
	}, nil)
	log := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	log.Info("starting aggserver", "addr", cfg.Addr, "version", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	raw, err := clickhousestore.New(ctx, log, clickhousestore.Config{
		Addr:     cfg.ClickHouseAddr,
		Database: cfg.ClickHouseDB,
		Username: cfg.ClickHouseUser,
		Password: cfg.ClickHousePass,
	})
	if err != nil {
		log.Error("clickhouse init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = raw.Close() }()

	redisCli, err := redisstore.New(ctx, cfg.RedisAddr)
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = redisCli.Close() }()

	store := entrystore.NewRedisStore(redisCli, cfg.CacheTTL, cfg.CacheOpTimeout)

	resolver, err := catalog.NewResolver(raw, cfg.CatalogCacheSize)
	if err != nil {
		log.Error("catalog resolver init failed", "err", err)
		os.Exit(1)
	}

	coord := coordinator.New(
		log,
		resolver,
		window.NewNormalizer(window.Bounds{MinYear: cfg.DataMinYear, MaxYear: cfg.DataMaxYear}),
		aggregate.New(raw),
		raw,
		store,
		cfg.CacheTTL,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gctx, cfg, log, server.Deps{
			Average: coord,
			Catalog: raw,
			Pingers: map[string]health.Pinger{
				"redis":      redisCli,
				"clickhouse": raw,
			},
		})
	})

	g.Go(func() error {
		sw := sweeper.New(log, redisCli, cfg.CacheMaxEntries, cfg.SweepInterval)
		return sw.Run(gctx)
	})

	if cfg.Invalidation.Enabled {
		kcfg := kafkaconsumer.FromEnv()
		cons, err := kafkaconsumer.New(kcfg, log, store)
		if err != nil {
			log.Error("kafka consumer init failed", "err", err)
			os.Exit(1)
		}
		g.Go(func() error {
			return cons.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "err", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
