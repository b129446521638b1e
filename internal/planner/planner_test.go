package planner

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
)

const tol = 1e-3

func exampleInput(maxProduction float64, policy domain.TerminalPolicy) domain.PlanningInput {
	return domain.PlanningInput{
		Periods:      []string{"1", "2", "3", "4"},
		Demand:       []float64{150, 200, 180, 220},
		SafetyStock:  []float64{20, 20, 20, 0},
		InitialStock: 100,
		Params: domain.Parameters{
			YieldFactor:   0.8,
			DensityFactor: 0.9,
			MaxProduction: maxProduction,
			Objective:     domain.Minimize,
			Terminal:      policy,
		},
	}
}

type countingBackend struct {
	inner Backend
	calls int32
}

func (b *countingBackend) Solve(ctx context.Context, form StandardForm) (Solution, error) {
	atomic.AddInt32(&b.calls, 1)
	return b.inner.Solve(ctx, form)
}

type backendFunc func(ctx context.Context, form StandardForm) (Solution, error)

func (f backendFunc) Solve(ctx context.Context, form StandardForm) (Solution, error) {
	return f(ctx, form)
}

func TestBuildStandardForm_Shape(t *testing.T) {
	exact := BuildStandardForm(exampleInput(300, domain.TerminalExactZero))
	r, c := exact.A.Dims()
	assert.Equal(t, 9, r)
	assert.Equal(t, 12, c)
	assert.Len(t, exact.B, 9)
	assert.Equal(t, domain.TerminalExactZero, exact.Policy)

	floor := BuildStandardForm(exampleInput(300, domain.TerminalFloorOnly))
	r, _ = floor.A.Dims()
	assert.Equal(t, 8, r)

	// balance row 0 carries the initial stock
	assert.InDelta(t, 100-150-20, floor.B[0], 1e-12)
	assert.InDelta(t, -0.72, floor.A.At(0, 0), 1e-12)
	assert.Equal(t, 300.0, floor.B[4])
}

func TestSolve_ExactZeroExample(t *testing.T) {
	opt := NewOptimizer()
	in := exampleInput(300, domain.TerminalAuto)

	res, err := opt.Solve(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOptimal, res.Status)

	assert.InDelta(t, 0, res.EndingStock[3], tol)
	assert.InDelta(t, (750.0-100.0)/0.72, res.ObjectiveValue, tol)
	assert.InDelta(t, floats.Sum(res.ProductionLevels), res.ObjectiveValue, 1e-9)

	for t2, p := range res.ProductionLevels {
		assert.GreaterOrEqual(t, p, -1e-6)
		assert.LessOrEqual(t, p, 300+1e-6)
		assert.GreaterOrEqual(t, res.EndingStock[t2], in.SafetyStock[t2]-tol)
	}

	ok, msg := Validate(res, in)
	assert.True(t, ok, msg)
}

func TestSolve_Maximize(t *testing.T) {
	in := exampleInput(300, domain.TerminalFloorOnly)
	in.Params.Objective = domain.Maximize

	res, err := NewOptimizer().Solve(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOptimal, res.Status)
	assert.InDelta(t, 1200, res.ObjectiveValue, tol)
}

func TestSolve_FloorOnlyMinimizesBelowExactZero(t *testing.T) {
	exact, err := NewOptimizer().Solve(context.Background(), exampleInput(300, domain.TerminalExactZero))
	require.NoError(t, err)
	floor, err := NewOptimizer().Solve(context.Background(), exampleInput(300, domain.TerminalFloorOnly))
	require.NoError(t, err)

	require.Equal(t, domain.StatusOptimal, floor.Status)
	assert.LessOrEqual(t, floor.ObjectiveValue, exact.ObjectiveValue+tol)
	assert.GreaterOrEqual(t, floor.EndingStock[3], -tol)
}

func TestSolve_ZeroInstance(t *testing.T) {
	in := domain.PlanningInput{
		Periods:     []string{"a", "b", "c"},
		Demand:      []float64{0, 0, 0},
		SafetyStock: []float64{0, 0, 0},
		Params: domain.Parameters{
			YieldFactor:   1,
			DensityFactor: 1,
			MaxProduction: 50,
			Objective:     domain.Minimize,
			Terminal:      domain.TerminalAuto,
		},
	}

	res, err := NewOptimizer().Solve(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOptimal, res.Status)
	assert.Equal(t, []float64{0, 0, 0}, res.ProductionLevels)
	assert.Equal(t, []float64{0, 0, 0}, res.EndingStock)
	assert.Equal(t, 0.0, res.ObjectiveValue)
}

func TestSolve_InfeasibleExample(t *testing.T) {
	res, err := NewOptimizer().Solve(context.Background(), exampleInput(10, domain.TerminalAuto))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInfeasible, res.Status)
	assert.Empty(t, res.ProductionLevels)
	assert.Empty(t, res.EndingStock)
}

func TestSolve_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.PlanningInput)
	}{
		{"safety stock length", func(in *domain.PlanningInput) { in.SafetyStock = in.SafetyStock[:2] }},
		{"period length", func(in *domain.PlanningInput) { in.Periods = in.Periods[:1] }},
		{"empty", func(in *domain.PlanningInput) { in.Demand, in.SafetyStock, in.Periods = nil, nil, nil }},
		{"negative initial", func(in *domain.PlanningInput) { in.InitialStock = -1 }},
		{"yield out of range", func(in *domain.PlanningInput) { in.Params.YieldFactor = 1.5 }},
		{"zero density", func(in *domain.PlanningInput) { in.Params.DensityFactor = 0 }},
		{"bad objective", func(in *domain.PlanningInput) { in.Params.Objective = "sideways" }},
	}

	counter := &countingBackend{inner: NewSimplexBackend(0)}
	opt := NewOptimizer(WithBackend(counter))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := exampleInput(300, domain.TerminalAuto)
			tt.mutate(&in)

			_, err := opt.Solve(context.Background(), in)
			require.Error(t, err)
			assert.True(t, domain.IsConfigurationError(err))
		})
	}
	assert.Zero(t, atomic.LoadInt32(&counter.calls), "no solve may start on a malformed instance")
}

func TestSolve_BackendOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		want    domain.Status
	}{
		{"unbounded", backendFunc(func(context.Context, StandardForm) (Solution, error) {
			return Solution{}, ErrUnbounded
		}), domain.StatusUnbounded},
		{"generic error", backendFunc(func(context.Context, StandardForm) (Solution, error) {
			return Solution{}, errors.New("singular")
		}), domain.StatusNotSolved},
		{"panic", backendFunc(func(context.Context, StandardForm) (Solution, error) {
			panic("boom")
		}), domain.StatusNotSolved},
		{"short solution", backendFunc(func(context.Context, StandardForm) (Solution, error) {
			return Solution{X: []float64{1}}, nil
		}), domain.StatusNotSolved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewOptimizer(WithBackend(tt.backend)).Solve(context.Background(), exampleInput(300, domain.TerminalAuto))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Status)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestSolve_TimeoutIsNotSolved(t *testing.T) {
	slow := backendFunc(func(ctx context.Context, _ StandardForm) (Solution, error) {
		select {
		case <-ctx.Done():
			return Solution{}, ctx.Err()
		case <-time.After(5 * time.Second):
			return Solution{}, nil
		}
	})

	start := time.Now()
	res, err := NewOptimizer(WithBackend(slow), WithTimeout(20*time.Millisecond)).
		Solve(context.Background(), exampleInput(300, domain.TerminalAuto))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotSolved, res.Status)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSolve_RandomFeasibleInstances(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	opt := NewOptimizer()

	for i := 0; i < 40; i++ {
		n := 1 + rng.Intn(12)
		in := domain.PlanningInput{
			Periods:      make([]string, n),
			Demand:       make([]float64, n),
			SafetyStock:  make([]float64, n),
			InitialStock: rng.Float64() * 50,
			Params: domain.Parameters{
				YieldFactor:   0.5 + rng.Float64()*0.5,
				DensityFactor: 0.5 + rng.Float64()*0.5,
				Objective:     domain.Minimize,
				Terminal:      domain.TerminalFloorOnly,
			},
		}
		if rng.Intn(2) == 0 {
			in.Params.Objective = domain.Maximize
		}
		for t := 0; t < n; t++ {
			in.Periods[t] = string(rune('A' + t))
			in.Demand[t] = rng.Float64() * 100
			in.SafetyStock[t] = rng.Float64() * 30
		}
		// enough capacity to rebuild any floor from scratch in every period
		in.Params.MaxProduction = (100+30)/in.Params.EffectiveFactor() + 1

		res, err := opt.Solve(context.Background(), in)
		require.NoError(t, err)
		require.Equal(t, domain.StatusOptimal, res.Status, "instance %d: %s", i, res.Message)

		for t2 := 0; t2 < n; t2++ {
			assert.GreaterOrEqual(t, res.ProductionLevels[t2], -1e-6)
			assert.LessOrEqual(t, res.ProductionLevels[t2], in.Params.MaxProduction+1e-6)
			assert.GreaterOrEqual(t, res.EndingStock[t2], in.SafetyStock[t2]-tol)
			assert.InDelta(t, res.SolverStock[t2], res.EndingStock[t2], tol)
		}

		ok, msg := Validate(res, in)
		assert.True(t, ok, msg)
	}
}

func TestSolve_MonotoneInCapacity(t *testing.T) {
	opt := NewOptimizer()
	prev := -1.0
	for _, capacity := range []float64{250, 300, 450, 900} {
		res, err := opt.Solve(context.Background(), exampleInput(capacity, domain.TerminalFloorOnly))
		require.NoError(t, err)
		require.Equal(t, domain.StatusOptimal, res.Status, "capacity %v", capacity)
		if prev >= 0 {
			assert.LessOrEqual(t, res.ObjectiveValue, prev+tol)
		}
		prev = res.ObjectiveValue
	}
}

func TestSolve_DoesNotMutateInput(t *testing.T) {
	in := exampleInput(300, domain.TerminalAuto)
	before := in.Clone()

	_, err := NewOptimizer().Solve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, before, in)
}
