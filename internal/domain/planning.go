package domain

import (
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ObjectiveSense selects whether the planner seeks the smallest or the largest
// total raw production that satisfies every constraint.
type ObjectiveSense string

const (
	Minimize ObjectiveSense = "min"
	Maximize ObjectiveSense = "max"
)

// ParseObjective accepts "min"/"minimize" and "max"/"maximize".
func ParseObjective(s string) (ObjectiveSense, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "min", "minimize", "minimise":
		return Minimize, true
	case "max", "maximize", "maximise":
		return Maximize, true
	}
	return "", false
}

// TerminalPolicy controls the constraint placed on the last period's stock.
type TerminalPolicy string

const (
	// TerminalAuto picks ExactZero when the last safety stock is zero and
	// FloorOnly otherwise.
	TerminalAuto TerminalPolicy = "auto"
	// TerminalExactZero forces stock[N-1] == 0.
	TerminalExactZero TerminalPolicy = "exact_zero"
	// TerminalFloorOnly only applies the regular safety-stock floor.
	TerminalFloorOnly TerminalPolicy = "floor_only"
)

// ParseTerminalPolicy accepts the policy names plus a few aliases.
func ParseTerminalPolicy(s string) (TerminalPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return TerminalAuto, true
	case "exact_zero", "exact", "zero":
		return TerminalExactZero, true
	case "floor_only", "floor":
		return TerminalFloorOnly, true
	}
	return "", false
}

// Resolve turns TerminalAuto into a concrete policy for the given safety stocks.
func (p TerminalPolicy) Resolve(safetyStock []float64) TerminalPolicy {
	if p != TerminalAuto && p != "" {
		return p
	}
	if len(safetyStock) > 0 && safetyStock[len(safetyStock)-1] > 0 {
		return TerminalFloorOnly
	}
	return TerminalExactZero
}

// Parameters are the tunables threaded explicitly into every solve.
type Parameters struct {
	YieldFactor   float64        `json:"yield_factor" yaml:"yield_factor" validate:"gt=0,lte=1"`
	DensityFactor float64        `json:"density_factor" yaml:"density_factor" validate:"gt=0,lte=1"`
	MaxProduction float64        `json:"max_production" yaml:"max_production" validate:"gte=0"`
	Objective     ObjectiveSense `json:"objective" yaml:"objective" validate:"omitempty,oneof=min max"`
	Terminal      TerminalPolicy `json:"terminal_policy" yaml:"terminal_policy" validate:"omitempty,oneof=auto exact_zero floor_only"`
}

var validate = validator.New()

// Validate checks parameter ranges and reports the first violation as a
// ConfigurationError.
func (p Parameters) Validate() error {
	if math.IsInf(p.MaxProduction, 0) {
		return NewConfigurationError("max_production", "must be finite")
	}
	if err := validate.Struct(p); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return NewConfigurationError(fe.Field(), "failed %q constraint (value %v)", fe.Tag(), fe.Value())
		}
		return NewConfigurationError("parameters", "%v", err)
	}
	return nil
}

// EffectiveFactor is the conversion applied to raw production.
func (p Parameters) EffectiveFactor() float64 {
	return p.YieldFactor * p.DensityFactor
}

// PlanningInput is a normalized problem instance. Callers that need a variant
// must work on Clone.
type PlanningInput struct {
	Periods      []string   `json:"periods" yaml:"periods"`
	Demand       []float64  `json:"demand" yaml:"demand"`
	SafetyStock  []float64  `json:"safety_stock" yaml:"safety_stock"`
	InitialStock float64    `json:"initial_stock" yaml:"initial_stock"`
	Params       Parameters `json:"parameters" yaml:"parameters"`
}

// N is the number of periods.
func (in PlanningInput) N() int {
	return len(in.Demand)
}

// Terminal returns the concrete terminal policy for this instance.
func (in PlanningInput) Terminal() TerminalPolicy {
	return in.Params.Terminal.Resolve(in.SafetyStock)
}

// Clone returns a deep copy.
func (in PlanningInput) Clone() PlanningInput {
	out := in
	out.Periods = append([]string(nil), in.Periods...)
	out.Demand = append([]float64(nil), in.Demand...)
	out.SafetyStock = append([]float64(nil), in.SafetyStock...)
	return out
}

// Validate checks the structural invariants of the instance.
func (in PlanningInput) Validate() error {
	n := len(in.Demand)
	if n == 0 {
		return NewConfigurationError("demand", "at least one period is required")
	}
	if len(in.SafetyStock) != n {
		return NewConfigurationError("safety_stock", "length %d does not match demand length %d", len(in.SafetyStock), n)
	}
	if len(in.Periods) != n {
		return NewConfigurationError("periods", "length %d does not match demand length %d", len(in.Periods), n)
	}
	for t := 0; t < n; t++ {
		if !finiteNonNegative(in.Demand[t]) {
			return NewConfigurationError("demand", "period %s: invalid value %v", in.Periods[t], in.Demand[t])
		}
		if !finiteNonNegative(in.SafetyStock[t]) {
			return NewConfigurationError("safety_stock", "period %s: invalid value %v", in.Periods[t], in.SafetyStock[t])
		}
	}
	if !finiteNonNegative(in.InitialStock) {
		return NewConfigurationError("initial_stock", "invalid value %v", in.InitialStock)
	}
	return in.Params.Validate()
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
