package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abelzeko/water-router/internal/config"
	"github.com/abelzeko/water-router/internal/entities"
	"github.com/abelzeko/water-router/internal/hydrograph"
	"github.com/abelzeko/water-router/internal/routing"
)

var (
	// ErrUnknownReach is returned for a reach name missing from the catalogue
	ErrUnknownReach = errors.New("unknown reach")
	// ErrNoHistory is returned when the upstream station has no usable discharge history
	ErrNoHistory = errors.New("no discharge history for reach")
)

// Reaches returns the configured forecast reaches
func (uc *RiverUseCase) Reaches() []config.ReachConfig {
	return uc.reaches
}

// ReachNames returns the names of the configured reaches
func (uc *RiverUseCase) ReachNames() []string {
	names := make([]string, 0, len(uc.reaches))
	for _, r := range uc.reaches {
		names = append(names, r.Name)
	}
	return names
}

func (uc *RiverUseCase) findReach(name string) (config.ReachConfig, bool) {
	for _, r := range uc.reaches {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return config.ReachConfig{}, false
}

// reachForRiver picks the first reach fed by the given river
func (uc *RiverUseCase) reachForRiver(river string) string {
	if river == "" {
		return ""
	}
	for _, r := range uc.reaches {
		if strings.EqualFold(r.River, river) {
			return r.Name
		}
	}
	return ""
}

// ForecastReach routes the recent discharge history of the reach's
// upstream station through the reach. Results are cached until new data
// is recorded.
func (uc *RiverUseCase) ForecastReach(ctx context.Context, name string) (*entities.Forecast, error) {
	reach, ok := uc.findReach(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReach, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lastUpdate, err := uc.repo.GetLastUpdateTime()
	if err != nil {
		return nil, fmt.Errorf("failed to get last update time: %w", err)
	}
	key := reach.Name + "@" + lastUpdate.UTC().Format(time.RFC3339Nano)
	if f, ok := uc.forecasts.Get(key); ok {
		uc.log.Debugf("Forecast cache hit for reach %s", reach.Name)
		return f, nil
	}

	now := uc.now()
	obs, err := uc.repo.GetStationHistory(reach.River, reach.Station, now.Add(-reach.History))
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s/%s: %w", reach.River, reach.Station, err)
	}

	inflow, err := hydrograph.FromObservations(obs, reach.TimeStep)
	if err != nil {
		if errors.Is(err, hydrograph.ErrNoSamples) {
			uc.countFailure("no_history")
			return nil, fmt.Errorf("%w %s (%s/%s)", ErrNoHistory, reach.Name, reach.River, reach.Station)
		}
		uc.countFailure(failureReason(err))
		return nil, fmt.Errorf("failed to build inflow for %s: %w", reach.Name, err)
	}
	uc.log.Debugf("Reach %s inflow: %s", reach.Name, hydrograph.Summary(inflow))

	router := routing.NewRouter(
		routing.WithPolicy(reach.Policy),
		routing.WithLogger(uc.log.With("reach", reach.Name)),
		routing.WithAdvisoryHandler(uc.countAdvisory),
	)
	if uc.metrics != nil {
		uc.metrics.RouteRuns.WithLabelValues(reach.Policy.String()).Inc()
		uc.metrics.RouteSamples.Observe(float64(inflow.Len()))
	}

	res, err := router.Route(inflow.Flows, reach.Params())
	if err != nil {
		uc.countFailure(failureReason(err))
		return nil, fmt.Errorf("failed to route reach %s: %w", reach.Name, err)
	}

	advisories := make([]string, 0, len(res.Advisories))
	for _, a := range res.Advisories {
		advisories = append(advisories, a.String())
	}

	f := &entities.Forecast{
		Reach:       reach.Name,
		Description: reach.Description,
		Inflow:      inflow,
		Outflow:     res.Outflow,
		K:           reach.K,
		X:           reach.X,
		SubReaches:  reach.SubReaches,
		Policy:      reach.Policy.String(),
		Advisories:  advisories,
		ComputedAt:  now,
	}
	uc.forecasts.Add(key, f)
	return f, nil
}

// ForecastMessage computes a forecast and renders it for chat, turning
// errors into user-facing text.
func (uc *RiverUseCase) ForecastMessage(ctx context.Context, name string) string {
	f, err := uc.ForecastReach(ctx, name)
	switch {
	case err == nil:
		return FormatForecast(f)
	case errors.Is(err, ErrUnknownReach):
		return fmt.Sprintf("Reach '%s' not found. Use /reaches to see available ones.", name)
	case errors.Is(err, ErrNoHistory):
		return fmt.Sprintf("Not enough discharge data yet to forecast reach '%s'.", name)
	case errors.Is(err, routing.ErrInvalidParameter), errors.Is(err, routing.ErrOutOfRecommendedRange):
		uc.log.Errorf("Reach %s is misconfigured: %v", name, err)
		return fmt.Sprintf("Reach '%s' is misconfigured and cannot be forecast.", name)
	default:
		uc.log.Errorf("Error forecasting reach %s: %v", name, err)
		return "Sorry, I couldn't compute the forecast right now."
	}
}

func (uc *RiverUseCase) countAdvisory(a routing.Advisory) {
	if uc.metrics != nil {
		uc.metrics.RouteAdvisories.WithLabelValues(string(a.Kind)).Inc()
	}
}

func (uc *RiverUseCase) countFailure(reason string) {
	if uc.metrics != nil {
		uc.metrics.RouteFailures.WithLabelValues(reason).Inc()
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, routing.ErrOutOfRecommendedRange):
		return "out_of_range"
	case errors.Is(err, routing.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, routing.ErrNumericDegenerate):
		return "degenerate"
	default:
		return "other"
	}
}

// FormatForecast renders a forecast for display
func FormatForecast(f *entities.Forecast) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔮 Forecast for reach %s\n", f.Reach))
	if f.Description != "" {
		b.WriteString(f.Description + "\n")
	}
	b.WriteString(fmt.Sprintf("📍 Upstream: %s / %s\n", f.Inflow.River, f.Inflow.Station))
	b.WriteString(fmt.Sprintf("⚙️ K=%s X=%.2f sub-reaches=%d (%s)\n\n", f.K, f.X, f.SubReaches, f.Policy))

	inAt, inQ := f.InflowPeak()
	outAt, outQ := f.OutflowPeak()
	b.WriteString(fmt.Sprintf("🌊 Upstream peak: %.1f m³/s at %s\n", inQ, inAt.Format("2006-01-02 15:04 MST")))
	b.WriteString(fmt.Sprintf("🌊 Routed peak: %.1f m³/s at %s\n", outQ, outAt.Format("2006-01-02 15:04 MST")))
	if lag := f.PeakLag(); lag > 0 {
		b.WriteString(fmt.Sprintf("⏱️ Peak lag: %s\n", lag))
	}
	b.WriteString(fmt.Sprintf("📈 Latest routed discharge: %.1f m³/s at %s\n",
		f.Latest(), f.Inflow.End().Format("2006-01-02 15:04 MST")))

	for _, a := range f.Advisories {
		b.WriteString(fmt.Sprintf("⚠️ %s\n", a))
	}
	return b.String()
}
