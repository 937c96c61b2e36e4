// Package routing implements Muskingum flood-wave routing for a single river reach.
//
// Given an inflow hydrograph sampled at a uniform time step and the reach
// parameters k (storage constant, seconds), x (weighting factor) and Δt
// (time step, seconds), the engine computes the outflow hydrograph at the
// downstream end of the reach:
//
//	den = 2k(1-x) + Δt
//	c0  = (Δt - 2kx) / den
//	c1  = (Δt + 2kx) / den
//	c2  = (2k(1-x) - Δt) / den
//
//	O[0] = initial outflow (defaults to I[0])
//	O[i] = c0·I[i] + c1·I[i-1] + c2·O[i-1]
//
// A reach can be split into N equal sub-reaches routed in series, each with
// storage constant k/N. Only the first sub-reach honours an explicit initial
// outflow; the others seed from the first sample of their own input.
//
// Usage:
//
//	p := routing.NewParams(time.Hour, 15*time.Minute, 0.25,
//		routing.WithSubReaches(4))
//	res, err := routing.Route(inflow, p)
//	if err != nil {
//		// ErrInvalidParameter, ErrOutOfRecommendedRange (strict policy)
//		// or ErrNumericDegenerate
//	}
//	for _, a := range res.Advisories {
//		// x outside [0, 0.5] and similar non-fatal conditions
//	}
//
// The engine is pure: it performs no I/O, never mutates the caller's
// slice, and a Router is safe for concurrent use.
package routing
