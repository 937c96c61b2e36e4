package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/water-router/internal/api"
	"github.com/abelzeko/water-router/internal/config"
	"github.com/abelzeko/water-router/internal/integration"
	"github.com/abelzeko/water-router/internal/integration/openai"
	"github.com/abelzeko/water-router/internal/logging"
	"github.com/abelzeko/water-router/internal/metrics"
	"github.com/abelzeko/water-router/internal/repository"
	"github.com/abelzeko/water-router/internal/usecases"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Must(config.DefaultLogLevel, false).Fatalf("Failed to load configuration: %v", err)
	}

	log := logging.Must(cfg.LogLevel, cfg.DevLog)
	defer func() { _ = log.Sync() }()
	log.Info("Starting Water Bot...")

	if err := cfg.RequireTelegram(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The bot still answers commands without the agent
	var agent openai.OpenAIService
	if cfg.OpenAIKey != "" {
		agent, err = openai.NewOpenAIService(cfg.OpenAIKey, log.Named("openai"))
		if err != nil {
			log.Fatalf("Failed to initialize OpenAI service: %v", err)
		}
	} else {
		log.Warnf("%s is not set, free-text queries are disabled", config.EnvOpenAIKey)
	}

	reaches, err := config.LoadReaches(cfg.ReachesFile)
	if err != nil {
		log.Fatalf("Failed to load reaches: %v", err)
	}
	log.Infof("Loaded %d forecast reach(es) from %s", len(reaches), cfg.ReachesFile)

	repo, err := repository.NewSQLiteRiverRepository(cfg.DBPath, log.Named("repository"))
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	m := metrics.New()
	go func() {
		if err := m.Serve(ctx, cfg.MetricsAddr, log.Named("metrics")); err != nil {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()

	scraper := integration.NewWaterScraper("", integration.WithLogger(log.Named("scraper")))

	useCase := usecases.NewRiverUseCase(repo, scraper, agent,
		usecases.WithReaches(reaches),
		usecases.WithLogger(log.Named("usecase")),
		usecases.WithMetrics(m),
	)

	telegramBot, err := api.NewTelegramBot(cfg.TelegramToken, useCase, log.Named("telegram"))
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot: %v", err)
	}

	telegramBot.Start(ctx)
}
