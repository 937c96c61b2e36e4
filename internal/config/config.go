// Package config loads process settings from the environment and the
// reach catalogue from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names
const (
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvDBPath         = "WATERBOT_DB_PATH"
	EnvLogLevel       = "WATERBOT_LOG_LEVEL"
	EnvDevLog         = "WATERBOT_DEV_LOG"
	EnvReachesFile    = "WATERBOT_REACHES"
	EnvMetricsAddr    = "WATERBOT_METRICS_ADDR"
	EnvScraperMetrics = "WATERBOT_SCRAPER_METRICS_ADDR"
	EnvScrapeSchedule = "WATERBOT_SCRAPE_SCHEDULE"
)

// Defaults applied when a variable is unset
const (
	DefaultLogLevel       = "info"
	DefaultReachesFile    = "reaches.yaml"
	DefaultMetricsAddr    = ":9090"
	DefaultScraperMetrics = ":9091"
	DefaultScrapeSchedule = "0 * * * *"
)

// DefaultDBPath is where the SQLite database lives unless overridden
var DefaultDBPath = filepath.Join("data", "riverdata.db")

// Config holds the settings shared by the bot, the scraper and the CLI
type Config struct {
	TelegramToken  string
	OpenAIKey      string
	DBPath         string
	LogLevel       string
	DevLog         bool
	ReachesFile    string
	MetricsAddr    string // Bot metrics endpoint
	ScraperMetrics string // Scraper metrics endpoint
	ScrapeSchedule string
}

// Load reads .env files (if any) into the environment and builds a Config.
// Variables already set in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		TelegramToken:  os.Getenv(EnvTelegramToken),
		OpenAIKey:      os.Getenv(EnvOpenAIKey),
		DBPath:         getenv(EnvDBPath, DefaultDBPath),
		LogLevel:       strings.ToLower(getenv(EnvLogLevel, DefaultLogLevel)),
		ReachesFile:    getenv(EnvReachesFile, DefaultReachesFile),
		ScrapeSchedule: getenv(EnvScrapeSchedule, DefaultScrapeSchedule),
	}

	// An explicitly empty address disables a metrics endpoint
	cfg.MetricsAddr = lookupenv(EnvMetricsAddr, DefaultMetricsAddr)
	cfg.ScraperMetrics = lookupenv(EnvScraperMetrics, DefaultScraperMetrics)
	if cfg.MetricsAddr != "" && cfg.MetricsAddr == cfg.ScraperMetrics {
		return nil, fmt.Errorf("%s and %s must differ, both are %q", EnvMetricsAddr, EnvScraperMetrics, cfg.MetricsAddr)
	}

	if v := os.Getenv(EnvDevLog); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvDevLog, v, err)
		}
		cfg.DevLog = dev
	}

	return cfg, nil
}

// RequireTelegram reports an error when the bot token is missing
func (c *Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("%s environment variable is not set", EnvTelegramToken)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// lookupenv is getenv that keeps an explicitly empty value
func lookupenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
