package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/water-router/internal/config"
	"github.com/abelzeko/water-router/internal/entities"
	"github.com/abelzeko/water-router/internal/hydrograph"
	"github.com/abelzeko/water-router/internal/integration/openai"
	"github.com/abelzeko/water-router/internal/metrics"
	"github.com/abelzeko/water-router/internal/routing"
)

var testNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeRepo struct {
	saved        []entities.RiverData
	history      []entities.RiverData
	lastUpdate   time.Time
	historyCalls int
}

func (r *fakeRepo) SaveRiverData(data []entities.RiverData) error {
	r.saved = append(r.saved, data...)
	return nil
}

func (r *fakeRepo) GetRiverDataByName(name string) ([]entities.RiverData, error) {
	var out []entities.RiverData
	for _, d := range r.history {
		if d.River == name {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetUniqueRivers() ([]string, error) { return []string{"Sava", "Drina"}, nil }

func (r *fakeRepo) GetLastUpdateTime() (time.Time, error) { return r.lastUpdate, nil }

func (r *fakeRepo) GetRiverData(cutoff time.Time) ([]entities.RiverData, error) {
	var out []entities.RiverData
	for _, d := range r.history {
		if !d.Timestamp.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetStationHistory(river, station string, since time.Time) ([]entities.RiverData, error) {
	r.historyCalls++
	var out []entities.RiverData
	for _, d := range r.history {
		if d.River == river && d.Station == station && !d.Timestamp.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeRepo) Close() error { return nil }

type fakeSource struct {
	main, gradac, rhmz []entities.RiverData
	gradacErr          error
	mainErr            error
}

func (s *fakeSource) FetchWaterData(context.Context) ([]entities.RiverData, error) {
	return s.main, s.mainErr
}

func (s *fakeSource) FetchGradacRiverData(context.Context) ([]entities.RiverData, error) {
	return s.gradac, s.gradacErr
}

func (s *fakeSource) FetchRhmzRsData(context.Context) ([]entities.RiverData, error) {
	return s.rhmz, nil
}

type fakeAgent struct {
	resp *openai.AgentResponse
}

func (a *fakeAgent) InterpretUserQuery(context.Context, string, []string, []string) (*openai.AgentResponse, error) {
	return a.resp, nil
}

// hourly discharge at Šabac ending at testNow
func savaHistory(flows ...string) []entities.RiverData {
	start := testNow.Add(-time.Duration(len(flows)-1) * time.Hour)
	out := make([]entities.RiverData, len(flows))
	for i, q := range flows {
		out[i] = entities.RiverData{
			River:      "Sava",
			Station:    "Šabac",
			WaterLevel: "300",
			Discharge:  q,
			Timestamp:  start.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func savaReach() config.ReachConfig {
	return config.ReachConfig{
		Name:        "sava-lower",
		Description: "Šabac to Beograd",
		River:       "Sava",
		Station:     "Šabac",
		K:           2 * time.Hour,
		X:           0.25,
		TimeStep:    time.Hour,
		SubReaches:  1,
		History:     config.DefaultHistory,
	}
}

func newTestUseCase(repo *fakeRepo, m *metrics.Metrics, reaches ...config.ReachConfig) *RiverUseCase {
	return NewRiverUseCase(repo, nil, nil,
		WithReaches(reaches),
		WithMetrics(m),
		WithClock(func() time.Time { return testNow }),
	)
}

func TestRefreshRiverData(t *testing.T) {
	repo := &fakeRepo{}
	src := &fakeSource{
		main:      []entities.RiverData{{River: "Sava", Station: "Šabac"}},
		gradacErr: errors.New("timeout"),
		rhmz:      []entities.RiverData{{River: "Drina", Station: "Zvornik"}},
	}
	m := metrics.New()
	uc := NewRiverUseCase(repo, src, nil, WithMetrics(m))

	require.NoError(t, uc.RefreshRiverData(context.Background()))
	assert.Len(t, repo.saved, 2, "failed secondary source must not drop the rest")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrapeRuns.WithLabelValues("ok")))

	src.mainErr = errors.New("down")
	require.Error(t, uc.RefreshRiverData(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrapeRuns.WithLabelValues("error")))
}

func TestRefreshWithoutSource(t *testing.T) {
	uc := NewRiverUseCase(&fakeRepo{}, nil, nil)
	assert.Error(t, uc.RefreshRiverData(context.Background()))
}

func TestForecastReach(t *testing.T) {
	repo := &fakeRepo{history: savaHistory("10", "20", "30", "20", "10"), lastUpdate: testNow}
	m := metrics.New()
	uc := newTestUseCase(repo, m, savaReach())

	f, err := uc.ForecastReach(context.Background(), "Sava-Lower")
	require.NoError(t, err)

	// K=2h, x=0.25, dt=1h gives c0=0, c1=c2=0.5
	want := []float64{10, 10, 15, 22.5, 21.25}
	require.Len(t, f.Outflow, len(want))
	for i := range want {
		assert.InDelta(t, want[i], f.Outflow[i], 1e-9, "outflow[%d]", i)
	}
	assert.Equal(t, "sava-lower", f.Reach)
	assert.Equal(t, "warn", f.Policy)
	assert.Empty(t, f.Advisories)
	assert.Equal(t, time.Hour, f.PeakLag())
	assert.Equal(t, testNow, f.ComputedAt)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RouteRuns.WithLabelValues("warn")))
}

func TestForecastReachIsCachedPerUpdate(t *testing.T) {
	repo := &fakeRepo{history: savaHistory("10", "20", "30"), lastUpdate: testNow}
	uc := newTestUseCase(repo, nil, savaReach())

	first, err := uc.ForecastReach(context.Background(), "sava-lower")
	require.NoError(t, err)
	second, err := uc.ForecastReach(context.Background(), "sava-lower")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, repo.historyCalls)

	repo.lastUpdate = testNow.Add(time.Hour)
	third, err := uc.ForecastReach(context.Background(), "sava-lower")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, repo.historyCalls)
}

func TestForecastReachErrors(t *testing.T) {
	t.Run("unknown reach", func(t *testing.T) {
		uc := newTestUseCase(&fakeRepo{}, nil, savaReach())
		_, err := uc.ForecastReach(context.Background(), "morava")
		assert.ErrorIs(t, err, ErrUnknownReach)
		assert.Contains(t, uc.ForecastMessage(context.Background(), "morava"), "not found")
	})

	t.Run("no history", func(t *testing.T) {
		repo := &fakeRepo{history: savaHistory("-", "")}
		m := metrics.New()
		uc := newTestUseCase(repo, m, savaReach())
		_, err := uc.ForecastReach(context.Background(), "sava-lower")
		assert.ErrorIs(t, err, ErrNoHistory)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.RouteFailures.WithLabelValues("no_history")))
	})

	t.Run("invalid step is not counted as missing history", func(t *testing.T) {
		reach := savaReach()
		reach.TimeStep = 0
		repo := &fakeRepo{history: savaHistory("10", "20", "30")}
		m := metrics.New()
		uc := newTestUseCase(repo, m, reach)

		_, err := uc.ForecastReach(context.Background(), "sava-lower")
		assert.ErrorIs(t, err, hydrograph.ErrInvalidStep)
		assert.NotErrorIs(t, err, ErrNoHistory)
		assert.Equal(t, 0.0, testutil.ToFloat64(m.RouteFailures.WithLabelValues("no_history")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.RouteFailures.WithLabelValues("other")))
	})

	t.Run("strict policy rejects x out of range", func(t *testing.T) {
		reach := savaReach()
		reach.X = 0.7
		reach.Policy = routing.PolicyStrict
		repo := &fakeRepo{history: savaHistory("10", "20", "30")}
		m := metrics.New()
		uc := newTestUseCase(repo, m, reach)

		_, err := uc.ForecastReach(context.Background(), "sava-lower")
		assert.ErrorIs(t, err, routing.ErrOutOfRecommendedRange)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.RouteFailures.WithLabelValues("out_of_range")))
		assert.Contains(t, uc.ForecastMessage(context.Background(), "sava-lower"), "misconfigured")
	})

	t.Run("cancelled context", func(t *testing.T) {
		uc := newTestUseCase(&fakeRepo{}, nil, savaReach())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := uc.ForecastReach(ctx, "sava-lower")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestForecastReachWarnsAndCountsAdvisories(t *testing.T) {
	reach := savaReach()
	reach.X = 0.45
	reach.K = 30 * time.Minute
	repo := &fakeRepo{history: savaHistory("10", "-5", "30"), lastUpdate: testNow}
	m := metrics.New()
	uc := newTestUseCase(repo, m, reach)

	f, err := uc.ForecastReach(context.Background(), "sava-lower")
	require.NoError(t, err)
	require.Len(t, f.Advisories, 1)
	assert.Contains(t, f.Advisories[0], "negative")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RouteAdvisories.WithLabelValues(string(routing.AdvisoryNegativeInflow))))
	assert.Contains(t, FormatForecast(f), "⚠️")
}

func TestFormatForecast(t *testing.T) {
	repo := &fakeRepo{history: savaHistory("10", "20", "30", "20", "10"), lastUpdate: testNow}
	uc := newTestUseCase(repo, nil, savaReach())
	f, err := uc.ForecastReach(context.Background(), "sava-lower")
	require.NoError(t, err)

	text := FormatForecast(f)
	assert.Contains(t, text, "Forecast for reach sava-lower")
	assert.Contains(t, text, "Šabac to Beograd")
	assert.Contains(t, text, "Upstream peak: 30.0 m³/s")
	assert.Contains(t, text, "Routed peak: 22.5 m³/s")
	assert.Contains(t, text, "Peak lag: 1h0m0s")
	assert.NotContains(t, text, "⚠️")
}

func TestHandleNaturalLanguageQuery(t *testing.T) {
	repo := &fakeRepo{history: savaHistory("10", "20", "30"), lastUpdate: testNow}
	agent := &fakeAgent{}
	uc := NewRiverUseCase(repo, nil, agent,
		WithReaches([]config.ReachConfig{savaReach()}),
		WithClock(func() time.Time { return testNow }))

	agent.resp = &openai.AgentResponse{CommandName: openai.CommandGetRiverDataByName, SerbianRiverName: "Sava", UserMessage: "Here you go"}
	reply, err := uc.HandleNaturalLanguageQuery(context.Background(), "how is the sava?")
	require.NoError(t, err)
	assert.Contains(t, reply, "Here you go")
	assert.Contains(t, reply, "Information for river Sava")

	agent.resp = &openai.AgentResponse{CommandName: openai.CommandForecastReach, SerbianRiverName: "Sava"}
	reply, err = uc.HandleNaturalLanguageQuery(context.Background(), "what comes down the sava?")
	require.NoError(t, err)
	assert.Contains(t, reply, "Forecast for reach sava-lower")

	agent.resp = &openai.AgentResponse{CommandName: openai.CommandForecastReach, SerbianRiverName: "Tisa"}
	reply, err = uc.HandleNaturalLanguageQuery(context.Background(), "and the tisa?")
	require.NoError(t, err)
	assert.Contains(t, reply, "/reaches")

	agent.resp = &openai.AgentResponse{CommandName: openai.CommandGeneralQuery, UserMessage: "Hello!"}
	reply, err = uc.HandleNaturalLanguageQuery(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)
}

func TestHandleNaturalLanguageQueryWithoutAgent(t *testing.T) {
	uc := NewRiverUseCase(&fakeRepo{}, nil, nil)
	reply, err := uc.HandleNaturalLanguageQuery(context.Background(), "hi")
	require.NoError(t, err)
	assert.Contains(t, reply, "/help")
}

func TestFormatRiverInfo(t *testing.T) {
	uc := NewRiverUseCase(&fakeRepo{}, nil, nil)
	assert.Equal(t, "No information available for this river.", uc.FormatRiverInfo(nil))

	text := uc.FormatRiverInfo([]entities.RiverData{{
		River: "Sava", Station: "Šabac", WaterLevel: "310", Discharge: "1200", Timestamp: testNow,
	}})
	assert.Contains(t, text, "📍 Station: Šabac")
	assert.Contains(t, text, "🌊 Discharge: 1200 m³/s")
	assert.NotContains(t, text, "Water Temperature")
}

func TestStationsReporting(t *testing.T) {
	history := savaHistory("10", "20", "30", "40", "50")
	history = append(history,
		entities.RiverData{River: "Sava", Station: "Sremska Mitrovica", Timestamp: testNow.Add(-30 * time.Minute)},
		entities.RiverData{River: "Drina", Station: "Zvornik", Timestamp: testNow.Add(-time.Hour)},
		entities.RiverData{River: "Drina", Station: "Foča", Timestamp: testNow.Add(-5 * time.Hour)},
	)
	uc := newTestUseCase(&fakeRepo{history: history}, nil)

	counts, err := uc.StationsReporting(3 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Sava": 2, "Drina": 1}, counts)
}
