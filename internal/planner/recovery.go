package planner

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/pkg/logger"
)

// DefaultMaxAttempts is the number of relaxations tried after a failed solve.
const DefaultMaxAttempts = 5

// RelaxationConfig holds the escalation constants. Every multiplier is
// relative to the original input, never to a previous attempt.
type RelaxationConfig struct {
	CapacityMultiplier float64 `mapstructure:"capacity_multiplier" yaml:"capacity_multiplier"`

	EfficiencyMultiplier         float64 `mapstructure:"efficiency_multiplier" yaml:"efficiency_multiplier"`
	EfficiencyCapacityMultiplier float64 `mapstructure:"efficiency_capacity_multiplier" yaml:"efficiency_capacity_multiplier"`

	SafetyStockMultiplier         float64 `mapstructure:"safety_stock_multiplier" yaml:"safety_stock_multiplier"`
	SafetyStockCapacityMultiplier float64 `mapstructure:"safety_stock_capacity_multiplier" yaml:"safety_stock_capacity_multiplier"`

	InitialStockFloor              float64 `mapstructure:"initial_stock_floor" yaml:"initial_stock_floor"`
	InitialStockCapacityMultiplier float64 `mapstructure:"initial_stock_capacity_multiplier" yaml:"initial_stock_capacity_multiplier"`

	FallbackMaxProduction     float64 `mapstructure:"fallback_max_production" yaml:"fallback_max_production"`
	FallbackInitialStockFloor float64 `mapstructure:"fallback_initial_stock_floor" yaml:"fallback_initial_stock_floor"`

	// LeadPeriods is how many leading periods feed the initial stock floors.
	LeadPeriods int `mapstructure:"lead_periods" yaml:"lead_periods"`
}

// DefaultRelaxationConfig returns the standard escalation constants.
func DefaultRelaxationConfig() RelaxationConfig {
	return RelaxationConfig{
		CapacityMultiplier:             5,
		EfficiencyMultiplier:           1.5,
		EfficiencyCapacityMultiplier:   2,
		SafetyStockMultiplier:          0.5,
		SafetyStockCapacityMultiplier:  3,
		InitialStockFloor:              1000,
		InitialStockCapacityMultiplier: 4,
		FallbackMaxProduction:          100000,
		FallbackInitialStockFloor:      5000,
		LeadPeriods:                    3,
	}
}

// Relaxation derives a more permissive instance from the original one. Apply
// receives a private copy and may modify it.
type Relaxation struct {
	Name  string
	Apply func(in domain.PlanningInput) domain.PlanningInput
}

// Relaxations returns the escalation sequence in its fixed order: capacity
// first, then efficiency, then safety stock, then initial conditions, then
// the extreme fallback.
func Relaxations(cfg RelaxationConfig) []Relaxation {
	return []Relaxation{
		{
			Name: "capacity",
			Apply: func(in domain.PlanningInput) domain.PlanningInput {
				in.Params.MaxProduction *= cfg.CapacityMultiplier
				return in
			},
		},
		{
			Name: "efficiency",
			Apply: func(in domain.PlanningInput) domain.PlanningInput {
				in.Params.YieldFactor = math.Min(in.Params.YieldFactor*cfg.EfficiencyMultiplier, 1)
				in.Params.DensityFactor = math.Min(in.Params.DensityFactor*cfg.EfficiencyMultiplier, 1)
				in.Params.MaxProduction *= cfg.EfficiencyCapacityMultiplier
				return in
			},
		},
		{
			Name: "safety_stock",
			Apply: func(in domain.PlanningInput) domain.PlanningInput {
				floats.Scale(cfg.SafetyStockMultiplier, in.SafetyStock)
				in.Params.MaxProduction *= cfg.SafetyStockCapacityMultiplier
				return in
			},
		},
		{
			Name: "initial_stock",
			Apply: func(in domain.PlanningInput) domain.PlanningInput {
				lead := floats.Sum(head(in.SafetyStock, cfg.LeadPeriods))
				in.InitialStock = math.Max(lead, cfg.InitialStockFloor)
				in.Params.MaxProduction *= cfg.InitialStockCapacityMultiplier
				return in
			},
		},
		{
			Name: "fallback",
			Apply: func(in domain.PlanningInput) domain.PlanningInput {
				in.Params.YieldFactor = 1
				in.Params.DensityFactor = 1
				in.Params.MaxProduction = cfg.FallbackMaxProduction
				for t := range in.SafetyStock {
					in.SafetyStock[t] = 0
				}
				lead := floats.Sum(head(in.Demand, cfg.LeadPeriods))
				in.InitialStock = math.Max(lead, cfg.FallbackInitialStockFloor)
				return in
			},
		},
	}
}

func head(v []float64, n int) []float64 {
	if n < 0 {
		n = 0
	}
	if n > len(v) {
		n = len(v)
	}
	return v[:n]
}

// Recovery is the outcome of Recover. Attempt is 0 when the first solve
// succeeded or when every relaxation failed; Result.Status tells the two
// apart.
type Recovery struct {
	Result     domain.PlanningResult
	Attempt    int
	Relaxation string
	// Input produced Result. It is the original input unless a relaxation
	// succeeded.
	Input domain.PlanningInput
	Trail []domain.AttemptRecord
}

// Recovered reports whether a relaxation produced the accepted result.
func (r Recovery) Recovered() bool {
	return r.Attempt > 0
}

// Recoverer retries failed solves with progressively relaxed instances.
type Recoverer struct {
	optimizer   *Optimizer
	relaxations []Relaxation
	maxAttempts int
}

// NewRecoverer creates a recovery loop. maxAttempts is capped at the number
// of relaxations; non-positive values select DefaultMaxAttempts.
func NewRecoverer(optimizer *Optimizer, relaxations []Relaxation, maxAttempts int) *Recoverer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if maxAttempts > len(relaxations) {
		maxAttempts = len(relaxations)
	}
	return &Recoverer{
		optimizer:   optimizer,
		relaxations: relaxations,
		maxAttempts: maxAttempts,
	}
}

// MaxAttempts is the effective attempt ceiling.
func (r *Recoverer) MaxAttempts() int {
	return r.maxAttempts
}

// Recover solves the input and, when the result is not Optimal, walks the
// relaxations in order until one yields an Optimal plan. Each attempt works on
// a fresh copy of the original input. The terminal policy is resolved once
// against the original safety stocks, so a relaxation that zeroes them cannot
// turn a floor-only instance into an exact-zero one.
func (r *Recoverer) Recover(ctx context.Context, in domain.PlanningInput) (Recovery, error) {
	original := in.Clone()
	base := original.Clone()
	base.Params.Terminal = original.Terminal()

	first, err := r.optimizer.Solve(ctx, original.Clone())
	if err != nil {
		return Recovery{}, err
	}

	trail := []domain.AttemptRecord{{Attempt: 0, Relaxation: "none", Status: first.Status, Message: first.Message}}
	if first.Status == domain.StatusOptimal {
		return Recovery{Result: first, Input: original, Trail: trail}, nil
	}

	for i := 0; i < r.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			logger.Log.Warn().Err(err).Int("attempt", i+1).Msg("recovery interrupted")
			break
		}

		relax := r.relaxations[i]
		candidate := relax.Apply(base.Clone())

		res, err := r.optimizer.Solve(ctx, candidate)
		if err != nil {
			// a relaxation that breaks the instance counts as a failed attempt
			res = domain.Unsolved(domain.StatusNotSolved, err.Error())
		}
		trail = append(trail, domain.AttemptRecord{
			Attempt:    i + 1,
			Relaxation: relax.Name,
			Status:     res.Status,
			Message:    res.Message,
		})

		logger.Log.Info().
			Int("attempt", i+1).
			Str("relaxation", relax.Name).
			Str("status", res.Status.String()).
			Float64("max_production", candidate.Params.MaxProduction).
			Msg("relaxation attempt finished")

		if res.Status == domain.StatusOptimal {
			return Recovery{
				Result:     res,
				Attempt:    i + 1,
				Relaxation: relax.Name,
				Input:      candidate,
				Trail:      trail,
			}, nil
		}
	}

	logger.Log.Warn().Int("attempts", len(trail)-1).Msg("no relaxation produced a feasible plan")

	return Recovery{
		Result: domain.Unsolved(domain.StatusInfeasible, "no feasible plan after all relaxations"),
		Input:  original,
		Trail:  trail,
	}, nil
}
