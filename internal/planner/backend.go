package planner

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/optimize/convex/lp"
)

// DefaultTolerance is the pivot tolerance handed to the simplex method.
const DefaultTolerance = 1e-9

// Backend solves a standard-form linear program. Implementations report
// infeasibility with ErrInfeasible and unboundedness with ErrUnbounded; any
// other error is treated as a failed solve.
type Backend interface {
	Solve(ctx context.Context, form StandardForm) (Solution, error)
}

var (
	ErrInfeasible = lp.ErrInfeasible
	ErrUnbounded  = lp.ErrUnbounded
)

// SimplexBackend runs gonum's simplex method.
type SimplexBackend struct {
	Tolerance float64
}

// NewSimplexBackend returns a backend with the given tolerance, or
// DefaultTolerance when tol is not positive.
func NewSimplexBackend(tol float64) *SimplexBackend {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	return &SimplexBackend{Tolerance: tol}
}

// Solve runs the simplex method. gonum panics on malformed programs; the
// panic is turned into an error.
func (b *SimplexBackend) Solve(ctx context.Context, form StandardForm) (sol Solution, err error) {
	if err := ctx.Err(); err != nil {
		return Solution{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simplex panicked: %v", r)
		}
	}()

	tol := b.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	opt, x, err := lp.Simplex(form.C, form.A, form.B, tol, nil)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) || errors.Is(err, lp.ErrUnbounded) {
			return Solution{}, err
		}
		return Solution{}, fmt.Errorf("simplex failed: %w", err)
	}

	return Solution{X: x, Objective: opt}, nil
}
