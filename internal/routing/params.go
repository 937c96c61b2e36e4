package routing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Recommended bounds for the weighting factor x.
const (
	MinX = 0.0
	MaxX = 0.5
)

// Policy selects how a Router treats parameters that are computable but
// outside their physically meaningful range.
type Policy int

const (
	// PolicyWarn proceeds and reports an Advisory.
	PolicyWarn Policy = iota
	// PolicyStrict rejects with ErrOutOfRecommendedRange.
	PolicyStrict
	// PolicyPermissive proceeds silently.
	PolicyPermissive
)

func (p Policy) String() string {
	switch p {
	case PolicyWarn:
		return "warn"
	case PolicyStrict:
		return "strict"
	case PolicyPermissive:
		return "permissive"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "warn", "strict" or "permissive" (case-insensitive).
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn":
		return PolicyWarn, nil
	case "strict":
		return PolicyStrict, nil
	case "permissive":
		return PolicyPermissive, nil
	default:
		return PolicyWarn, fmt.Errorf("unknown routing policy %q (want warn, strict or permissive)", s)
	}
}

// UnmarshalText lets a Policy be decoded from configuration files.
func (p *Policy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Set implements pflag.Value.
func (p *Policy) Set(s string) error { return p.UnmarshalText([]byte(s)) }

// Type implements pflag.Value.
func (p *Policy) Type() string { return "policy" }

// Params holds the reach parameters of one routing call. K and TimeStep
// are elapsed seconds.
type Params struct {
	K              float64
	X              float64
	TimeStep       float64
	SubReaches     int
	InitialOutflow *float64
}

// ParamOption customises Params built by NewParams.
type ParamOption func(*Params)

// WithSubReaches splits the reach into n sub-reaches routed in series.
func WithSubReaches(n int) ParamOption {
	return func(p *Params) { p.SubReaches = n }
}

// WithInitialOutflow seeds the first outflow sample.
func WithInitialOutflow(v float64) ParamOption {
	return func(p *Params) { p.InitialOutflow = &v }
}

// NewParams converts durations to whole seconds and applies opts.
// SubReaches defaults to 1.
func NewParams(k, step time.Duration, x float64, opts ...ParamOption) Params {
	p := Params{
		K:          Seconds(k),
		X:          x,
		TimeStep:   Seconds(step),
		SubReaches: 1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Seconds returns d as a whole number of seconds; the sub-second part is
// truncated.
func Seconds(d time.Duration) float64 {
	return float64(d / time.Second)
}

// StageK is the storage constant of each sub-reach.
func (p Params) StageK() float64 {
	if p.SubReaches < 1 {
		return p.K
	}
	return p.K / float64(p.SubReaches)
}

func (p Params) String() string {
	s := fmt.Sprintf("k=%gs x=%g dt=%gs n=%d", p.K, p.X, p.TimeStep, p.SubReaches)
	if p.InitialOutflow != nil {
		s += fmt.Sprintf(" o0=%g", *p.InitialOutflow)
	}
	return s
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// validate checks p and inflow against policy. Hard violations are
// combined into one error; advisories are only returned when err is nil.
func validate(inflow []float64, p Params, policy Policy) (advisories []Advisory, err error) {
	invalid := func(name string, v float64, reason string) {
		err = multierr.Append(err, &ParamError{Param: name, Value: v, Reason: reason})
	}

	if len(inflow) == 0 {
		invalid("inflow", 0, "must hold at least one sample")
	}
	switch {
	case !finite(p.K):
		invalid("k", p.K, "must be finite")
	case p.K <= 0:
		invalid("k", p.K, "must be greater than 0")
	}
	switch {
	case !finite(p.TimeStep):
		invalid("time_step", p.TimeStep, "must be finite")
	case p.TimeStep <= 0:
		invalid("time_step", p.TimeStep, "must be greater than 0")
	}
	if p.SubReaches < 1 {
		invalid("sub_reaches", float64(p.SubReaches), "must be at least 1")
	}
	if !finite(p.X) {
		invalid("x", p.X, "must be finite")
	}
	if p.InitialOutflow != nil && !finite(*p.InitialOutflow) {
		invalid("initial_outflow", *p.InitialOutflow, "must be finite")
	}

	negative := 0
	firstNegative := 0.0
	for i, q := range inflow {
		if !finite(q) {
			invalid(fmt.Sprintf("inflow[%d]", i), q, "must be finite")
			continue
		}
		if q < 0 {
			if negative == 0 {
				firstNegative = q
			}
			negative++
		}
	}
	if err != nil {
		return nil, err
	}

	suspect := func(a Advisory, strictReason string) {
		switch policy {
		case PolicyStrict:
			err = multierr.Append(err, &ParamError{Param: a.Param, Value: a.Value, Reason: strictReason, strict: true})
		case PolicyPermissive:
		default:
			advisories = append(advisories, a)
		}
	}

	if p.X < MinX || p.X > MaxX {
		suspect(Advisory{
			Kind:    AdvisoryOutOfRecommendedRange,
			Param:   "x",
			Value:   p.X,
			Message: "`x` is outside of recommended range [0.0, 0.5]",
		}, "must be between 0 and 0.5 (inclusive)")
	}
	if negative > 0 {
		suspect(Advisory{
			Kind:    AdvisoryNegativeInflow,
			Param:   "inflow",
			Value:   firstNegative,
			Message: fmt.Sprintf("inflow holds %d negative sample(s)", negative),
		}, "must not hold negative samples")
	}
	if err != nil {
		return nil, err
	}
	return advisories, nil
}
