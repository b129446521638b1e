package planner

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
)

func newTestRecoverer(backend Backend, maxAttempts int) *Recoverer {
	return NewRecoverer(NewOptimizer(WithBackend(backend)), Relaxations(DefaultRelaxationConfig()), maxAttempts)
}

func TestRelaxations_Order(t *testing.T) {
	rels := Relaxations(DefaultRelaxationConfig())
	names := make([]string, len(rels))
	for i, r := range rels {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"capacity", "efficiency", "safety_stock", "initial_stock", "fallback"}, names)
}

func TestRelaxations_AreRelativeToOriginal(t *testing.T) {
	original := exampleInput(10, domain.TerminalFloorOnly)
	rels := Relaxations(DefaultRelaxationConfig())

	capacity := rels[0].Apply(original.Clone())
	assert.Equal(t, 50.0, capacity.Params.MaxProduction)

	efficiency := rels[1].Apply(original.Clone())
	assert.Equal(t, 1.0, efficiency.Params.YieldFactor)
	assert.Equal(t, 1.0, efficiency.Params.DensityFactor)
	assert.Equal(t, 20.0, efficiency.Params.MaxProduction)

	safety := rels[2].Apply(original.Clone())
	assert.Equal(t, []float64{10, 10, 10, 0}, safety.SafetyStock)
	assert.Equal(t, 30.0, safety.Params.MaxProduction)

	initial := rels[3].Apply(original.Clone())
	assert.Equal(t, 1000.0, initial.InitialStock)
	assert.Equal(t, 40.0, initial.Params.MaxProduction)

	fallback := rels[4].Apply(original.Clone())
	assert.Equal(t, 1.0, fallback.Params.EffectiveFactor())
	assert.Equal(t, 100000.0, fallback.Params.MaxProduction)
	assert.Equal(t, []float64{0, 0, 0, 0}, fallback.SafetyStock)
	assert.Equal(t, 5000.0, fallback.InitialStock)

	// the original is never touched
	assert.Equal(t, exampleInput(10, domain.TerminalFloorOnly), original)
}

func TestRelaxations_InitialStockUsesLeadSafetyStock(t *testing.T) {
	in := exampleInput(10, domain.TerminalFloorOnly)
	in.SafetyStock = []float64{600, 500, 400, 0}

	relaxed := Relaxations(DefaultRelaxationConfig())[3].Apply(in.Clone())
	assert.Equal(t, 1500.0, relaxed.InitialStock)
}

func TestRecover_FirstSolveSucceeds(t *testing.T) {
	counter := &countingBackend{inner: NewSimplexBackend(0)}
	rec, err := newTestRecoverer(counter, 5).Recover(context.Background(), exampleInput(300, domain.TerminalAuto))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOptimal, rec.Result.Status)
	assert.Equal(t, 0, rec.Attempt)
	assert.False(t, rec.Recovered())
	assert.Len(t, rec.Trail, 1)
	assert.EqualValues(t, 1, atomic.LoadInt32(&counter.calls))
}

func TestRecover_FloorOnlyRecoversOnInitialStock(t *testing.T) {
	counter := &countingBackend{inner: NewSimplexBackend(0)}
	in := exampleInput(10, domain.TerminalFloorOnly)

	rec, err := newTestRecoverer(counter, 5).Recover(context.Background(), in)
	require.NoError(t, err)

	require.Equal(t, domain.StatusOptimal, rec.Result.Status)
	assert.Equal(t, 4, rec.Attempt)
	assert.Equal(t, "initial_stock", rec.Relaxation)
	assert.True(t, rec.Recovered())
	assert.Equal(t, 1000.0, rec.Input.InitialStock)

	// no attempt runs after the first success
	assert.EqualValues(t, 5, atomic.LoadInt32(&counter.calls))
	require.Len(t, rec.Trail, 5)
	for _, a := range rec.Trail[:4] {
		assert.Equal(t, domain.StatusInfeasible, a.Status)
	}
	assert.Equal(t, domain.StatusOptimal, rec.Trail[4].Status)

	ok, msg := Validate(rec.Result, rec.Input)
	assert.True(t, ok, msg)
}

func TestRecover_FallbackKeepsResolvedTerminalPolicy(t *testing.T) {
	counter := &countingBackend{inner: NewSimplexBackend(0)}
	in := exampleInput(1, domain.TerminalAuto)
	in.Demand = []float64{600, 600, 600, 600}
	in.SafetyStock = []float64{20, 20, 20, 20}
	require.Equal(t, domain.TerminalFloorOnly, in.Terminal())

	rec, err := newTestRecoverer(counter, 5).Recover(context.Background(), in)
	require.NoError(t, err)

	require.Equal(t, domain.StatusOptimal, rec.Result.Status, rec.Trail)
	assert.Equal(t, 5, rec.Attempt)
	assert.Equal(t, "fallback", rec.Relaxation)
	assert.Equal(t, domain.TerminalFloorOnly, rec.Input.Params.Terminal)
	assert.Equal(t, domain.TerminalFloorOnly, rec.Input.Terminal())
	assert.Equal(t, 5000.0, rec.Input.InitialStock)
	for _, a := range rec.Trail[1:5] {
		assert.Equal(t, domain.StatusInfeasible, a.Status)
	}

	ok, msg := Validate(rec.Result, rec.Input)
	assert.True(t, ok, msg)

	// the caller's input keeps its own policy
	assert.Equal(t, domain.TerminalAuto, in.Params.Terminal)
}

func TestRecover_ExactZeroExhaustsAttempts(t *testing.T) {
	counter := &countingBackend{inner: NewSimplexBackend(0)}
	in := exampleInput(10, domain.TerminalAuto)

	rec, err := newTestRecoverer(counter, 5).Recover(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInfeasible, rec.Result.Status)
	assert.Equal(t, 0, rec.Attempt)
	assert.Empty(t, rec.Relaxation)
	assert.Len(t, rec.Trail, 6)
	assert.EqualValues(t, 6, atomic.LoadInt32(&counter.calls))
	assert.Equal(t, in, rec.Input)
}

func TestRecover_AttemptCeiling(t *testing.T) {
	counter := &countingBackend{inner: NewSimplexBackend(0)}
	r := newTestRecoverer(counter, 2)
	assert.Equal(t, 2, r.MaxAttempts())

	rec, err := r.Recover(context.Background(), exampleInput(10, domain.TerminalFloorOnly))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInfeasible, rec.Result.Status)
	assert.Equal(t, 0, rec.Attempt)
	assert.EqualValues(t, 3, atomic.LoadInt32(&counter.calls))

	assert.Equal(t, 5, newTestRecoverer(counter, 99).MaxAttempts())
	assert.Equal(t, DefaultMaxAttempts, newTestRecoverer(counter, 0).MaxAttempts())
}

func TestRecover_NotSolvedTriggersRelaxation(t *testing.T) {
	var calls int32
	flaky := backendFunc(func(ctx context.Context, form StandardForm) (Solution, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return Solution{}, context.DeadlineExceeded
		}
		return NewSimplexBackend(0).Solve(ctx, form)
	})

	rec, err := newTestRecoverer(flaky, 5).Recover(context.Background(), exampleInput(300, domain.TerminalFloorOnly))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotSolved, rec.Trail[0].Status)
	assert.Equal(t, domain.StatusOptimal, rec.Result.Status)
	assert.Equal(t, 1, rec.Attempt)
}

func TestRecover_ConfigurationErrorAborts(t *testing.T) {
	in := exampleInput(300, domain.TerminalAuto)
	in.SafetyStock = []float64{1}

	_, err := newTestRecoverer(NewSimplexBackend(0), 5).Recover(context.Background(), in)
	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))
}
