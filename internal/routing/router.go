package routing

import (
	"go.uber.org/zap"
)

// Result is the outcome of a successful Route call.
type Result struct {
	// Outflow is the hydrograph at the downstream end of the reach.
	Outflow []float64
	// Coefficients used by every sub-reach stage.
	Coefficients Coefficients
	// Advisories lists non-fatal conditions found during validation.
	Advisories []Advisory
}

// AdvisoryHandler receives advisories as they are raised. It may be called
// from concurrent Route calls.
type AdvisoryHandler func(Advisory)

// Router routes hydrographs under a fixed validation policy. The zero
// value is not usable; build one with NewRouter.
type Router struct {
	policy     Policy
	logger     *zap.SugaredLogger
	onAdvisory AdvisoryHandler
}

// Option configures a Router.
type Option func(*Router)

// WithPolicy sets the out-of-range policy. The default is PolicyWarn.
func WithPolicy(p Policy) Option {
	return func(r *Router) { r.policy = p }
}

// WithLogger sets the logger that receives advisory warnings.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAdvisoryHandler registers h to be called for each advisory.
func WithAdvisoryHandler(h AdvisoryHandler) Option {
	return func(r *Router) { r.onAdvisory = h }
}

// NewRouter creates a Router.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		policy: PolicyWarn,
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy reports the router's validation policy.
func (r *Router) Policy() Policy {
	return r.policy
}

var defaultRouter = NewRouter()

// Route routes inflow with a PolicyWarn router that does not log.
func Route(inflow []float64, p Params) (*Result, error) {
	return defaultRouter.Route(inflow, p)
}

// Route validates p, derives the coefficients of one sub-reach and routes
// inflow through p.SubReaches sub-reaches in series. Nothing is computed
// when validation fails.
func (r *Router) Route(inflow []float64, p Params) (*Result, error) {
	advisories, err := validate(inflow, p, r.policy)
	if err != nil {
		return nil, err
	}

	c, err := DeriveCoefficients(p.StageK(), p.X, p.TimeStep)
	if err != nil {
		return nil, err
	}

	for _, a := range advisories {
		r.logger.Warnw(a.Message, "kind", a.Kind, "param", a.Param, "value", a.Value)
		if r.onAdvisory != nil {
			r.onAdvisory(a)
		}
	}

	seed := inflow[0]
	if p.InitialOutflow != nil {
		seed = *p.InitialOutflow
	}

	out := make([]float64, len(inflow))
	routeInto(out, inflow, c, seed)
	if p.SubReaches > 1 {
		scratch := make([]float64, len(inflow))
		for stage := 2; stage <= p.SubReaches; stage++ {
			routeInto(scratch, out, c, out[0])
			out, scratch = scratch, out
		}
	}

	r.logger.Debugf("Routed %d samples through %d sub-reach(es) (%s)", len(inflow), p.SubReaches, p)

	return &Result{
		Outflow:      out,
		Coefficients: c,
		Advisories:   advisories,
	}, nil
}
