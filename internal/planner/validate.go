package planner

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
)

// ValidationTolerance is the absolute slack allowed on every check.
const ValidationTolerance = 1e-3

// Validate re-checks a result against the input without trusting the solver:
// the stock trajectory is replayed from the production levels.
func Validate(result domain.PlanningResult, in domain.PlanningInput) (bool, string) {
	if result.Status != domain.StatusOptimal {
		return false, fmt.Sprintf("status is %s, not optimal", result.Status)
	}

	n := in.N()
	if len(result.ProductionLevels) != n {
		return false, fmt.Sprintf("expected %d production levels, got %d", n, len(result.ProductionLevels))
	}

	maxProd := in.Params.MaxProduction
	for t, p := range result.ProductionLevels {
		if p > maxProd+ValidationTolerance {
			return false, fmt.Sprintf("period %s: production %.3f exceeds maximum %.3f", in.Periods[t], p, maxProd)
		}
		if p < -ValidationTolerance {
			return false, fmt.Sprintf("period %s: negative production %.3f", in.Periods[t], p)
		}
	}

	stock := domain.ReplayStock(in, result.ProductionLevels)
	for t, s := range stock {
		if s < in.SafetyStock[t]-ValidationTolerance {
			return false, fmt.Sprintf("period %s: stock %.3f below safety stock %.3f", in.Periods[t], s, in.SafetyStock[t])
		}
	}

	if in.Terminal() == domain.TerminalExactZero && math.Abs(stock[n-1]) > ValidationTolerance {
		return false, fmt.Sprintf("terminal stock %.3f is not zero", stock[n-1])
	}

	return true, "all constraints satisfied"
}

// Diagnose explains why an instance may be infeasible in terms of its data.
func Diagnose(in domain.PlanningInput) domain.Diagnostic {
	d := domain.Diagnostic{
		TotalDemand:              floats.Sum(in.Demand),
		MaxTheoreticalProduction: in.Params.MaxProduction * float64(in.N()) * in.Params.EffectiveFactor(),
		InitialStock:             in.InitialStock,
	}
	if len(in.SafetyStock) > 0 {
		d.FirstSafetyStock = in.SafetyStock[0]
	}
	d.CapacityShortfall = d.TotalDemand > d.MaxTheoreticalProduction+d.InitialStock
	d.InitialBelowSafety = d.InitialStock < d.FirstSafetyStock
	d.TerminalSurplus = in.Terminal() == domain.TerminalExactZero && d.InitialStock > d.TotalDemand
	return d
}
