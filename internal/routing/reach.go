package routing

// RouteReach routes inflow through a single homogeneous reach and returns
// a new slice of the same length. out[0] is *initial when initial is
// non-nil and inflow[0] otherwise. An empty inflow yields an empty result.
func RouteReach(inflow []float64, c Coefficients, initial *float64) []float64 {
	if len(inflow) == 0 {
		return []float64{}
	}
	seed := inflow[0]
	if initial != nil {
		seed = *initial
	}
	out := make([]float64, len(inflow))
	routeInto(out, inflow, c, seed)
	return out
}

// routeInto writes the outflow of src into dst. dst must be as long as
// src and must not alias it.
func routeInto(dst, src []float64, c Coefficients, seed float64) {
	dst[0] = seed
	prevIn, prevOut := src[0], seed
	for i := 1; i < len(src); i++ {
		in := src[i]
		out := c.C0*in + c.C1*prevIn + c.C2*prevOut
		dst[i] = out
		prevIn, prevOut = in, out
	}
}
