package routing

import "math"

// nearZero is the smallest denominator magnitude accepted when deriving
// coefficients.
const nearZero = 1e-10

// Coefficients are the weights of the Muskingum recurrence
// O[i] = C0·I[i] + C1·I[i-1] + C2·O[i-1]. They sum to 1.
type Coefficients struct {
	C0, C1, C2 float64
}

// Sum returns C0+C1+C2, which equals 1 up to rounding.
func (c Coefficients) Sum() float64 {
	return c.C0 + c.C1 + c.C2
}

// DeriveCoefficients computes the routing coefficients for storage
// constant k and time step dt (both seconds) and weighting factor x.
// It does not range-check its inputs; Router does that. A zero, near-zero
// or non-finite denominator yields ErrNumericDegenerate.
func DeriveCoefficients(k, x, dt float64) (Coefficients, error) {
	storage := 2 * k * (1 - x)
	den := storage + dt
	if !finite(den) || math.Abs(den) < nearZero {
		return Coefficients{}, &DegenerateError{K: k, X: x, TimeStep: dt, Den: den}
	}

	c := Coefficients{
		C0: (dt - 2*k*x) / den,
		C1: (dt + 2*k*x) / den,
		C2: (storage - dt) / den,
	}
	if !finite(c.C0) || !finite(c.C1) || !finite(c.C2) {
		return Coefficients{}, &DegenerateError{K: k, X: x, TimeStep: dt, Den: den}
	}
	return c, nil
}
