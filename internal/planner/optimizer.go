package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/pkg/logger"
)

// DefaultSolveTimeout bounds a single backend call.
const DefaultSolveTimeout = 30 * time.Second

// cleanEpsilon snaps solver noise to exact values.
const cleanEpsilon = 1e-9

// Optimizer builds and solves the production planning program.
type Optimizer struct {
	backend Backend
	timeout time.Duration
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithBackend replaces the default simplex backend.
func WithBackend(b Backend) Option {
	return func(o *Optimizer) {
		o.backend = b
	}
}

// WithTimeout sets the wall-clock limit of one solve. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *Optimizer) {
		o.timeout = d
	}
}

// NewOptimizer creates an optimizer backed by gonum's simplex method unless
// another backend is supplied.
func NewOptimizer(opts ...Option) *Optimizer {
	o := &Optimizer{
		backend: NewSimplexBackend(DefaultTolerance),
		timeout: DefaultSolveTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Solve validates the input and solves one instance. Only structural problems
// are returned as errors; feasibility outcomes are reported through the
// result status.
func (o *Optimizer) Solve(ctx context.Context, in domain.PlanningInput) (domain.PlanningResult, error) {
	if err := in.Validate(); err != nil {
		return domain.PlanningResult{}, err
	}

	form := BuildStandardForm(in)

	logger.Log.Debug().
		Int("periods", in.N()).
		Float64("yield_factor", in.Params.YieldFactor).
		Float64("density_factor", in.Params.DensityFactor).
		Float64("effective_factor", in.Params.EffectiveFactor()).
		Float64("max_production", in.Params.MaxProduction).
		Float64("initial_stock", in.InitialStock).
		Float64("total_demand", floats.Sum(in.Demand)).
		Str("objective", string(in.Params.Objective)).
		Str("terminal_policy", string(form.Policy)).
		Msg("solving production plan")

	sol, err := o.run(ctx, form)
	if err != nil {
		status := statusFor(err)
		logger.Log.Debug().Err(err).Str("status", status.String()).Msg("production plan not solved")
		return domain.Unsolved(status, err.Error()), nil
	}

	production := clean(append([]float64(nil), form.production(sol.X)...), 0, in.Params.MaxProduction)
	slack := form.slack(sol.X)
	solverStock := make([]float64, len(slack))
	for t, s := range slack {
		solverStock[t] = snap(in.SafetyStock[t] + s)
	}

	ending := domain.ReplayStock(in, production)
	for t := range ending {
		ending[t] = snap(ending[t])
	}

	return domain.PlanningResult{
		Status:           domain.StatusOptimal,
		ProductionLevels: production,
		EndingStock:      ending,
		SolverStock:      solverStock,
		ObjectiveValue:   floats.Sum(production),
	}, nil
}

// run calls the backend under the configured timeout. The backend runs in its
// own goroutine so a stuck solve cannot hold the caller past the deadline.
func (o *Optimizer) run(ctx context.Context, form StandardForm) (Solution, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	type outcome struct {
		sol Solution
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("backend panicked: %v", r)}
			}
		}()
		sol, err := o.backend.Solve(ctx, form)
		done <- outcome{sol: sol, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil && len(out.sol.X) != len(form.C) {
			return Solution{}, fmt.Errorf("backend returned %d values for %d variables", len(out.sol.X), len(form.C))
		}
		return out.sol, out.err
	case <-ctx.Done():
		return Solution{}, fmt.Errorf("solve interrupted: %w", ctx.Err())
	}
}

func statusFor(err error) domain.Status {
	switch {
	case errors.Is(err, ErrInfeasible):
		return domain.StatusInfeasible
	case errors.Is(err, ErrUnbounded):
		return domain.StatusUnbounded
	default:
		return domain.StatusNotSolved
	}
}

// clean snaps values within cleanEpsilon of the bounds onto them.
func clean(v []float64, lo, hi float64) []float64 {
	for i, x := range v {
		switch {
		case math.Abs(x-lo) < cleanEpsilon:
			v[i] = lo
		case math.Abs(x-hi) < cleanEpsilon:
			v[i] = hi
		}
	}
	return v
}

func snap(x float64) float64 {
	if math.Abs(x) < cleanEpsilon {
		return 0
	}
	return x
}
