package entities

import "time"

// Hydrograph is a discharge series sampled at a uniform time step
type Hydrograph struct {
	River   string
	Station string
	Start   time.Time     // Time of the first sample
	Step    time.Duration // Spacing between samples
	Flows   []float64     // Discharge in m³/s, oldest first
}

// Len returns the number of samples
func (h *Hydrograph) Len() int {
	return len(h.Flows)
}

// TimeAt returns the time of sample i
func (h *Hydrograph) TimeAt(i int) time.Time {
	return h.Start.Add(time.Duration(i) * h.Step)
}

// End returns the time of the last sample
func (h *Hydrograph) End() time.Time {
	if len(h.Flows) == 0 {
		return h.Start
	}
	return h.TimeAt(len(h.Flows) - 1)
}

// Peak returns the index and value of the largest sample, or -1 for an empty series
func Peak(flows []float64) (int, float64) {
	idx, peak := -1, 0.0
	for i, q := range flows {
		if idx < 0 || q > peak {
			idx, peak = i, q
		}
	}
	return idx, peak
}
