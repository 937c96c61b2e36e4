package entities

import "time"

// Forecast is the routed outflow at the downstream end of a reach
type Forecast struct {
	Reach       string
	Description string
	Inflow      *Hydrograph // Observed upstream series
	Outflow     []float64   // Routed downstream series, aligned with Inflow
	K           time.Duration
	X           float64
	SubReaches  int
	Policy      string
	Advisories  []string
	ComputedAt  time.Time
}

// InflowPeak returns the time and value of the upstream peak
func (f *Forecast) InflowPeak() (time.Time, float64) {
	i, q := Peak(f.Inflow.Flows)
	if i < 0 {
		return time.Time{}, 0
	}
	return f.Inflow.TimeAt(i), q
}

// OutflowPeak returns the time and value of the routed peak
func (f *Forecast) OutflowPeak() (time.Time, float64) {
	i, q := Peak(f.Outflow)
	if i < 0 {
		return time.Time{}, 0
	}
	return f.Inflow.TimeAt(i), q
}

// PeakLag is the delay between the upstream and the routed peak
func (f *Forecast) PeakLag() time.Duration {
	in, _ := f.InflowPeak()
	out, _ := f.OutflowPeak()
	return out.Sub(in)
}

// Latest returns the last routed outflow value
func (f *Forecast) Latest() float64 {
	if len(f.Outflow) == 0 {
		return 0
	}
	return f.Outflow[len(f.Outflow)-1]
}
