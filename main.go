package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"kidsafe/internal/classifier"
	"kidsafe/internal/config"
	"kidsafe/internal/crypto"
	"kidsafe/internal/dedup"
	"kidsafe/internal/fanout"
	"kidsafe/internal/ingest"
	"kidsafe/internal/pipeline"
	"kidsafe/internal/repository"
	"kidsafe/internal/router"
	"kidsafe/internal/rules"
	"kidsafe/internal/server"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Sealer for flagged content at rest
	sealer, err := crypto.NewSealerFromEnv(cfg.Engine.ContentKeyEnv)
	if err != nil {
		logger.Fatal("Failed to initialize content sealer", zap.Error(err))
	}

	// Repositories
	alertRepo := repository.NewAlertRepository(db, logger)
	filterRepo := repository.NewFilterRepository(db, logger)
	linkRepo := repository.NewGuardianLinkRepository(db, logger)
	channelRepo := repository.NewChannelRepository(db, logger)

	// Classification engine
	store := rules.NewStore(rules.Builtin(), filterRepo, cfg.FilterRefreshInterval(), logger)
	cls := classifier.New(store.BuiltinRules(), cfg.Engine.SimilarityThreshold)
	gate := dedup.NewGate(cfg.CooldownWindow(), logger)
	rtr := router.New(linkRepo, logger)
	hub := fanout.NewHub(cfg.Engine.SessionBuffer, logger)
	engine := pipeline.NewEngine(cls, store, gate, rtr, alertRepo, linkRepo, hub, sealer,
		cfg.AlertThresholds(), cfg.Engine.QueueSize, cfg.Engine.Workers, logger)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go store.Run(ctx)
	go gate.Run(ctx)
	go engine.Run(ctx)

	// Collector poller, if a collector is configured
	if cfg.Collector.URL != "" {
		client := ingest.NewCollectorClient(cfg.Collector.URL, logger)
		poller := ingest.NewPoller(client, channelRepo, cfg.PollInterval(), cfg.Collector.RequestsPerSecond, logger)
		go poller.Run(ctx)
		go ingest.Pump(ctx, poller, engine, logger)
	}

	// Initialize and run the server
	srv := server.NewServer(server.Deps{
		Alerts:    alertRepo,
		Filters:   filterRepo,
		Hub:       hub,
		Engine:    engine,
		Sealer:    sealer,
		JWTSecret: []byte(cfg.Server.JWTSecret),
	}, logger)
	srv.Run(cfg.Server.Port)

	<-ctx.Done()
	logger.Info("Application stopped.")
}
