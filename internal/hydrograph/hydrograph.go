// Package hydrograph turns station observations and gauge files into
// uniformly sampled discharge series.
package hydrograph

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/water-router/internal/entities"
)

var (
	// ErrNoSamples is returned when no usable discharge value was found.
	ErrNoSamples = errors.New("hydrograph: no usable discharge samples")
	// ErrInvalidStep is returned for a non-positive sampling step.
	ErrInvalidStep = errors.New("hydrograph: step must be positive")
)

type sample struct {
	t time.Time
	q float64
}

// ParseDischarge parses a published discharge value. Both "." and "," are
// accepted as decimal separator; "", "-" and other placeholders are not ok.
func ParseDischarge(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FromObservations builds a hydrograph at the given step from station
// observations. Observations are sorted by time; unparsable discharges and
// repeated timestamps are dropped. Samples between observations are
// linearly interpolated, starting at the first observation and ending at
// or before the last one.
func FromObservations(obs []entities.RiverData, step time.Duration) (*entities.Hydrograph, error) {
	if step <= 0 {
		return nil, ErrInvalidStep
	}

	samples := make([]sample, 0, len(obs))
	for _, o := range obs {
		q, ok := ParseDischarge(o.Discharge)
		if !ok || o.Timestamp.IsZero() {
			continue
		}
		samples = append(samples, sample{t: o.Timestamp, q: q})
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].t.Before(samples[j].t)
	})
	samples = dedupe(samples)
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	h := &entities.Hydrograph{
		Start: samples[0].t,
		Step:  step,
		Flows: resample(samples, step),
	}
	if len(obs) > 0 {
		h.River = obs[0].River
		h.Station = obs[0].Station
	}
	return h, nil
}

// dedupe keeps the first sample of each timestamp; samples must be sorted.
func dedupe(samples []sample) []sample {
	out := samples[:0]
	for i, s := range samples {
		if i > 0 && s.t.Equal(out[len(out)-1].t) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func resample(samples []sample, step time.Duration) []float64 {
	start := samples[0].t
	span := samples[len(samples)-1].t.Sub(start)
	n := int(span/step) + 1

	flows := make([]float64, n)
	j := 0
	for i := range flows {
		t := start.Add(time.Duration(i) * step)
		for j+1 < len(samples) && !samples[j+1].t.After(t) {
			j++
		}
		if j+1 >= len(samples) || samples[j].t.Equal(t) {
			flows[i] = samples[j].q
			continue
		}
		a, b := samples[j], samples[j+1]
		frac := float64(t.Sub(a.t)) / float64(b.t.Sub(a.t))
		flows[i] = a.q + frac*(b.q-a.q)
	}
	return flows
}

// Summary describes a hydrograph in one line, for logs.
func Summary(h *entities.Hydrograph) string {
	i, peak := entities.Peak(h.Flows)
	if i < 0 {
		return fmt.Sprintf("%s/%s: empty", h.River, h.Station)
	}
	return fmt.Sprintf("%s/%s: %d samples every %s from %s, peak %.2f m³/s at %s",
		h.River, h.Station, h.Len(), h.Step, h.Start.Format(time.RFC3339), peak, h.TimeAt(i).Format(time.RFC3339))
}
