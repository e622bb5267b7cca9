package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fxarb/internal/api/rest"
	"fxarb/internal/api/ws"
	"fxarb/internal/arbitrage"
	"fxarb/internal/backtest"
	"fxarb/internal/config"
	"fxarb/internal/feed"
	"fxarb/internal/infra/health"
	"fxarb/internal/infra/log"
	"fxarb/internal/infra/metrics"
	"fxarb/internal/infra/runner"
	"fxarb/internal/publish"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := log.NewLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	registry := metrics.Init(logger)

	board := &rest.Board{}
	hub := ws.NewHub(logger)
	sinks := []arbitrage.ReportSink{arbitrage.NewPrinter(os.Stdout, cfg.Arbitrage.PrintQuotes), board}
	if cfg.Replay.File == "" {
		sinks = append(sinks, hub)
	}
	if cfg.Redis.Enabled {
		rp, err := publish.NewRedis(ctx, cfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, reports will not be published there")
		} else {
			defer rp.Close()
			sinks = append(sinks, rp)
		}
	}

	eng, err := arbitrage.New(cfg, logger, sinks...)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine init failed")
	}

	if cfg.Replay.File != "" {
		st, err := backtest.ReplayFile(ctx, cfg.Replay.File, eng, cfg.Replay.BatchFrames)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.Replay.File).Msg("replay failed")
		}
		logger.Info().Str("stats", st.String()).Msg("replay complete")
		return
	}

	sub, err := feed.Dial(cfg, eng, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("feed init failed")
	}
	defer sub.Close()
	if err := sub.Subscribe(); err != nil {
		logger.Fatal().Err(err).Msg("subscription failed")
	}

	g, gctx := runner.New(ctx)
	if cfg.Server.Enabled {
		srv := rest.New(rest.Deps{Config: cfg, Logger: logger, Registry: registry, Board: board, WS: hub.HandleWS})
		g.Go("http", func() error { return srv.ListenAndServe(gctx, cfg) })
	}
	g.Go("ws", func() error { return hub.Run(gctx) })
	g.Go("feed", func() error { return sub.Run(gctx) })

	health.SetStaleAfter(4 * cfg.Feed.ReceiveTimeout)
	health.SetReady(true)
	logger.Info().Str("publisher", cfg.Feed.PublisherAddr).Str("reference", cfg.Arbitrage.ReferenceCurrency).
		Str("addr", cfg.Server.Addr).Msg("fxarb started")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker error")
	}
	health.SetReady(false)
	logger.Info().Msg("shutdown complete")
}
