package routing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter reports a parameter that makes the recurrence undefined.
	ErrInvalidParameter = errors.New("routing: invalid parameter")

	// ErrOutOfRecommendedRange is returned instead of an advisory under PolicyStrict.
	ErrOutOfRecommendedRange = errors.New("routing: parameter outside recommended range")

	// ErrNumericDegenerate reports a zero or non-finite coefficient denominator.
	ErrNumericDegenerate = errors.New("routing: numerically degenerate coefficients")
)

// ParamError describes a single rejected parameter.
type ParamError struct {
	Param  string
	Value  float64
	Reason string
	strict bool
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("routing: `%s` %s (got %g)", e.Param, e.Reason, e.Value)
}

// Unwrap returns ErrOutOfRecommendedRange for strict-policy rejections and
// ErrInvalidParameter otherwise.
func (e *ParamError) Unwrap() error {
	if e.strict {
		return ErrOutOfRecommendedRange
	}
	return ErrInvalidParameter
}

// DegenerateError carries the inputs that produced an unusable denominator.
type DegenerateError struct {
	K, X, TimeStep float64
	Den            float64
}

func (e *DegenerateError) Error() string {
	return fmt.Sprintf("routing: coefficient denominator %g for k=%gs x=%g dt=%gs", e.Den, e.K, e.X, e.TimeStep)
}

func (e *DegenerateError) Unwrap() error { return ErrNumericDegenerate }

// AdvisoryKind classifies non-fatal conditions.
type AdvisoryKind string

const (
	// AdvisoryOutOfRecommendedRange: x lies outside [0, 0.5].
	AdvisoryOutOfRecommendedRange AdvisoryKind = "out_of_recommended_range"
	// AdvisoryNegativeInflow: the inflow hydrograph holds negative samples.
	AdvisoryNegativeInflow AdvisoryKind = "negative_inflow"
)

// Advisory is a warning about parameters that are computable but
// physically questionable. It never stops a computation.
type Advisory struct {
	Kind    AdvisoryKind
	Param   string
	Value   float64
	Message string
}

func (a Advisory) String() string {
	return a.Message
}
