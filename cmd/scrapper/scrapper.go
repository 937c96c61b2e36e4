package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/abelzeko/water-router/internal/config"
	"github.com/abelzeko/water-router/internal/integration"
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
	log.Info("Starting Water Bot Scraper...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reaches, err := config.LoadReaches(cfg.ReachesFile)
	if err != nil {
		log.Fatalf("Failed to load reaches: %v", err)
	}

	repo, err := repository.NewSQLiteRiverRepository(cfg.DBPath, log.Named("repository"))
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	m := metrics.New()
	go func() {
		if err := m.Serve(ctx, cfg.ScraperMetrics, log.Named("metrics")); err != nil {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()

	scraper := integration.NewWaterScraper("", integration.WithLogger(log.Named("scraper")))

	useCase := usecases.NewRiverUseCase(repo, scraper, nil,
		usecases.WithReaches(reaches),
		usecases.WithLogger(log.Named("usecase")),
		usecases.WithMetrics(m),
	)

	// Run use case immediately on startup
	refresh(ctx, useCase, log)

	c := cron.New(cron.WithLogger(cronLogger{log.Named("cron")}))
	if _, err := c.AddFunc(cfg.ScrapeSchedule, func() { refresh(ctx, useCase, log) }); err != nil {
		log.Fatalf("Failed to set up cron job: %v", err)
	}

	log.Infof("Scraper has been scheduled with %q", cfg.ScrapeSchedule)
	c.Start()

	<-ctx.Done()
	log.Info("Shutting down, waiting for running refresh...")
	<-c.Stop().Done()
}

// reportingWindow bounds the per-refresh station summary
const reportingWindow = 3 * time.Hour

// refresh scrapes all sources and logs a forecast for every reach
func refresh(ctx context.Context, uc *usecases.RiverUseCase, log *zap.SugaredLogger) {
	if err := uc.RefreshRiverData(ctx); err != nil {
		log.Errorf("Data refresh failed: %v", err)
		return
	}
	if counts, err := uc.StationsReporting(reportingWindow); err != nil {
		log.Warnf("Failed to summarise refresh: %v", err)
	} else {
		log.Infow("Stations reporting", "window", reportingWindow, "rivers", len(counts), "stations", counts)
	}
	for _, r := range uc.Reaches() {
		f, err := uc.ForecastReach(ctx, r.Name)
		if err != nil {
			log.Warnf("Forecast for reach %s failed: %v", r.Name, err)
			continue
		}
		_, peak := f.OutflowPeak()
		log.Infow("Reach forecast",
			"reach", f.Reach,
			"latest", f.Latest(),
			"peak", peak,
			"peak_lag", f.PeakLag(),
			"advisories", len(f.Advisories))
	}
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
