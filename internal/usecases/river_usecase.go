// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/abelzeko/water-router/internal/config"
	"github.com/abelzeko/water-router/internal/entities"
	"github.com/abelzeko/water-router/internal/integration/openai"
	"github.com/abelzeko/water-router/internal/metrics"
	"github.com/abelzeko/water-router/internal/repository"
)

// WaterSource fetches observations from the monitoring websites
type WaterSource interface {
	FetchWaterData(ctx context.Context) ([]entities.RiverData, error)
	FetchGradacRiverData(ctx context.Context) ([]entities.RiverData, error)
	FetchRhmzRsData(ctx context.Context) ([]entities.RiverData, error)
}

// Forecasts are recomputed at most once per data refresh
const (
	forecastCacheSize = 64
	forecastCacheTTL  = time.Hour
)

// RiverUseCase handles business logic related to river data
type RiverUseCase struct {
	repo          repository.RiverRepository
	scraper       WaterSource
	openAIService openai.OpenAIService
	reaches       []config.ReachConfig
	forecasts     *expirable.LRU[string, *entities.Forecast]
	metrics       *metrics.Metrics
	log           *zap.SugaredLogger
	now           func() time.Time
}

// Option customises a RiverUseCase
type Option func(*RiverUseCase)

// WithReaches sets the forecast reach catalogue
func WithReaches(reaches []config.ReachConfig) Option {
	return func(uc *RiverUseCase) { uc.reaches = reaches }
}

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(uc *RiverUseCase) { uc.log = l }
}

// WithMetrics enables Prometheus counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(uc *RiverUseCase) { uc.metrics = m }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(uc *RiverUseCase) { uc.now = now }
}

// NewRiverUseCase creates a new river use case. scraper and openAIService
// may be nil for processes that only read or only refresh.
func NewRiverUseCase(repo repository.RiverRepository, scraper WaterSource, openAIService openai.OpenAIService, opts ...Option) *RiverUseCase {
	uc := &RiverUseCase{
		repo:          repo,
		scraper:       scraper,
		openAIService: openAIService,
		forecasts:     expirable.NewLRU[string, *entities.Forecast](forecastCacheSize, nil, forecastCacheTTL),
		log:           zap.NewNop().Sugar(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// RefreshRiverData fetches fresh data and updates the repository
func (uc *RiverUseCase) RefreshRiverData(ctx context.Context) (err error) {
	defer func() {
		if uc.metrics == nil {
			return
		}
		result := "ok"
		if err != nil {
			result = "error"
		}
		uc.metrics.ScrapeRuns.WithLabelValues(result).Inc()
	}()

	if uc.scraper == nil {
		return fmt.Errorf("no water data source configured")
	}
	uc.log.Infof("Starting river data refresh process...")

	// Fetch main water data from external source
	data, err := uc.scraper.FetchWaterData(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch general water data: %w", err)
	}
	uc.log.Infof("Successfully fetched %d river data entries", len(data))

	// Secondary sources are optional; continue with the main data if they fail
	gradacData, err := uc.scraper.FetchGradacRiverData(ctx)
	if err != nil {
		uc.log.Warnf("Failed to fetch ГРАДАЦ river data: %v", err)
	} else {
		uc.log.Infof("Successfully fetched %d ГРАДАЦ river data entries", len(gradacData))
		data = append(data, gradacData...)
	}

	rhmzRsData, err := uc.scraper.FetchRhmzRsData(ctx)
	if err != nil {
		uc.log.Warnf("Failed to fetch RHMZ RS data: %v", err)
	} else {
		uc.log.Infof("Successfully fetched %d RHMZ RS data entries", len(rhmzRsData))
		data = append(data, rhmzRsData...)
	}

	if err := uc.repo.SaveRiverData(data); err != nil {
		return fmt.Errorf("failed to save data to repository: %w", err)
	}

	return nil
}

// GetRiverDataByName retrieves data for a specific river
func (uc *RiverUseCase) GetRiverDataByName(riverName string) ([]entities.RiverData, error) {
	uc.log.Infof("Retrieving data for river: %s", riverName)
	return uc.repo.GetRiverDataByName(riverName)
}

// GetAvailableRivers returns a list of all river names
func (uc *RiverUseCase) GetAvailableRivers() ([]string, error) {
	uc.log.Debugf("Retrieving list of available rivers")
	return uc.repo.GetUniqueRivers()
}

// GetLastUpdateTime returns when data was last recorded
func (uc *RiverUseCase) GetLastUpdateTime() (time.Time, error) {
	return uc.repo.GetLastUpdateTime()
}

// StationsReporting counts, per river, the stations with at least one
// observation within window
func (uc *RiverUseCase) StationsReporting(window time.Duration) (map[string]int, error) {
	data, err := uc.repo.GetRiverData(uc.now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to load recent data: %w", err)
	}

	seen := make(map[[2]string]bool, len(data))
	counts := make(map[string]int)
	for _, d := range data {
		key := [2]string{d.River, d.Station}
		if seen[key] {
			continue
		}
		seen[key] = true
		counts[d.River]++
	}
	return counts, nil
}

// HandleNaturalLanguageQuery interprets a user's free-text query using the AI service
// and returns an appropriate response string.
func (uc *RiverUseCase) HandleNaturalLanguageQuery(ctx context.Context, query string) (string, error) {
	uc.log.Infof("Interpreting natural language query: %s", query)

	if uc.openAIService == nil {
		return "I don't understand. Use /help to see available commands.", nil
	}

	rivers, err := uc.GetAvailableRivers()
	if err != nil {
		uc.log.Errorf("Error fetching available rivers: %v", err)
		return "Sorry, I couldn't fetch the list of rivers right now.", nil
	}

	agentResp, err := uc.openAIService.InterpretUserQuery(ctx, query, rivers, uc.ReachNames())
	if err != nil {
		uc.log.Errorf("Error interpreting user query via OpenAI: %v", err)
		return "Sorry, I'm having trouble understanding right now. Please try again later or use /help.", nil
	}

	uc.log.Infof("Agent response: Command='%s', River='%s', Reach='%s', Message='%s'",
		agentResp.CommandName, agentResp.SerbianRiverName, agentResp.ReachName, agentResp.UserMessage)

	switch agentResp.CommandName {
	case openai.CommandGetRiverDataByName:
		if agentResp.SerbianRiverName == "" {
			// Agent identified intent but not a specific river, e.g. "Which river?"
			return agentResp.UserMessage, nil
		}
		riverData, err := uc.GetRiverDataByName(agentResp.SerbianRiverName)
		if err != nil {
			uc.log.Errorf("Error fetching river data after agent interpretation: %v", err)
			return "Sorry, I couldn't fetch the data for that river right now.", nil
		}
		if len(riverData) == 0 {
			return prefixed(agentResp.UserMessage, fmt.Sprintf("However, I couldn't find any information for river '%s'. Use /rivers to see available ones.", agentResp.SerbianRiverName)), nil
		}
		return prefixed(agentResp.UserMessage, uc.FormatRiverInfo(riverData)), nil

	case openai.CommandForecastReach:
		name := agentResp.ReachName
		if name == "" {
			name = uc.reachForRiver(agentResp.SerbianRiverName)
		}
		if name == "" {
			return prefixed(agentResp.UserMessage, "I have no forecast reach for that. Use /reaches to see the available ones."), nil
		}
		return prefixed(agentResp.UserMessage, uc.ForecastMessage(ctx, name)), nil

	case openai.CommandGeneralQuery:
		return agentResp.UserMessage, nil

	default:
		uc.log.Warnf("Agent returned unexpected command: %s", agentResp.CommandName)
		return "I'm not sure how to respond to that. You can use /help for commands.", nil
	}
}

// prefixed joins the agent's confirmation (if any) with a reply
func prefixed(agentMessage, reply string) string {
	if agentMessage == "" {
		return reply
	}
	return agentMessage + "\n\n" + reply
}

// FormatRiverInfo formats river information for display
func (uc *RiverUseCase) FormatRiverInfo(riverData []entities.RiverData) string {
	if len(riverData) == 0 {
		return "No information available for this river."
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Information for river %s:\n\n", riverData[0].River))

	for _, data := range riverData {
		result.WriteString(fmt.Sprintf("📍 Station: %s\n", data.Station))
		result.WriteString(fmt.Sprintf("💧 Water Level: %s cm\n", data.WaterLevel))

		// Only include fields that have values
		if data.WaterChange != "" {
			result.WriteString(fmt.Sprintf("📊 Change: %s cm\n", data.WaterChange))
		}
		if data.Discharge != "" {
			result.WriteString(fmt.Sprintf("🌊 Discharge: %s m³/s\n", data.Discharge))
		}
		if data.WaterTemp != "" {
			result.WriteString(fmt.Sprintf("🌡️ Water Temperature: %s °C\n", data.WaterTemp))
		}
		if data.Tendency != "" {
			result.WriteString(fmt.Sprintf("📈 Tendency: %s\n", data.Tendency))
		}

		result.WriteString(fmt.Sprintf("🕒 Last update: %s", data.Timestamp.Format("2006-01-02 15:04:05 MST")))
		result.WriteString("\n\n")
	}

	return result.String()
}
