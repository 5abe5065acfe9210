package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/autodirector/analyzer"
	"github.com/zsiec/autodirector/api"
	"github.com/zsiec/autodirector/bus"
	"github.com/zsiec/autodirector/config"
	"github.com/zsiec/autodirector/decision"
	"github.com/zsiec/autodirector/ingress"
	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/narration"
	"github.com/zsiec/autodirector/observe"
	"github.com/zsiec/autodirector/pipeline"
	"github.com/zsiec/autodirector/ranker"
)

var version = "dev"

func hzToInterval(hz float64) time.Duration {
	if hz <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(float64(time.Second) / hz)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	slog.Info("director starting",
		"version", version,
		"api", cfg.APIAddr,
		"analysis_hz", cfg.AnalysisRateHz,
		"decision_hz", cfg.DecisionRateHz,
	)

	// The upstream room is an injected capability. Without a real SFU
	// transport linked in, the synthetic room serves local runs; DEMO_CAMS
	// drives it with generated cameras so the full pipeline is observable.
	room := ingress.NewSyntheticRoom()
	demoCams, _ := strconv.Atoi(envOr("DEMO_CAMS", "0"))

	adapter := ingress.NewAdapter(room, hzToInterval(cfg.AnalysisRateHz), log)
	if err := adapter.Start(ctx, envOr("SFU_URL", "synthetic://local"), os.Getenv("SFU_TOKEN")); err != nil {
		slog.Error("ingress unavailable", "error", err)
		os.Exit(1)
	}

	cache := observe.NewCache()
	keywords := analyzer.DefaultKeywords()
	registry := analyzer.NewDefaultRegistry(keywords)

	b := bus.New(cfg.BusQueueSize, log)

	engine := decision.NewEngine(cfg.Policy, log)

	adapter.SetCameraEvents(nil, func(cam media.CameraID) {
		cache.Remove(cam)
		engine.RemoveCam(cam)
	})

	rnk := ranker.NewRanker(cache, registry, cfg.Weights, rankerConfig(cfg), engine, func(s ranker.Score) {
		engine.UpdateScore(s)
		b.Publish(bus.NewScoreEnvelope(s))
	}, log)
	rnk.SetDegradedCheck(adapter.Degraded)

	sampler := pipeline.NewSampler(adapter, registry, cache, pipeline.Config{
		Rate: hzToInterval(cfg.AnalysisRateHz),
	}, log)

	orch := narration.NewOrchestrator(narration.NewSilentSynthesizer(), narration.Config{
		MaxWords:        cfg.MaxNarrationWord,
		MaxTTSLatencyMs: cfg.MaxTTSLatencyMs,
	}, func(n narration.Narration) {
		b.Publish(bus.NewNarrationEnvelope(n))
	}, log)

	loop := decision.NewLoop(engine)
	loop.Rate = hzToInterval(cfg.DecisionRateHz)
	loop.Publish = func(d decision.Decision) {
		b.Publish(bus.NewSwitchEnvelope(d))
	}
	loop.OnSwitch = func(d decision.Decision) {
		if !d.HasTo {
			return
		}
		if s, ok := rnk.LastScore(d.ToCam); ok {
			orch.HandleSwitch(ctx, d.ToCam, d.Ts, s.Features)
		}
	}

	apiSrv, err := api.NewServer(api.ServerConfig{
		Addr:      cfg.APIAddr,
		Program:   engine,
		Ingress:   adapter,
		Analyzers: registry,
		Bus:       b,
		Config:    cfg,
	}, log)
	if err != nil {
		slog.Error("failed to create API server", "error", err)
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return adapter.Run(ctx) })
	g.Go(func() error { return sampler.Run(ctx) })
	g.Go(func() error { return rnk.Run(ctx, adapter.Cams) })
	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error { return apiSrv.Start(ctx) })

	if demoCams > 0 {
		slog.Info("driving synthetic demo cameras", "count", demoCams)
		g.Go(func() error { return runDemo(ctx, room, demoCams, hzToInterval(cfg.AnalysisRateHz)) })
	}

	apiSrv.SetReady(true)

	if err := g.Wait(); err != nil {
		slog.Error("director exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("director stopped")
}

func rankerConfig(cfg config.Config) ranker.Config {
	rc := ranker.DefaultConfig()
	rc.Rate = hzToInterval(cfg.RankingRateHz)
	return rc
}
