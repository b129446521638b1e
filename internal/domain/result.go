package domain

// PlanningResult is the outcome of one solve attempt. The arrays are only
// populated when Status is Optimal.
type PlanningResult struct {
	Status           Status    `json:"status" yaml:"status"`
	ProductionLevels []float64 `json:"production_levels,omitempty" yaml:"production_levels,omitempty"`
	// EndingStock is replayed from the recurrence, never copied from the solver.
	EndingStock []float64 `json:"ending_stock,omitempty" yaml:"ending_stock,omitempty"`
	// SolverStock is the trajectory as reported by the backend.
	SolverStock    []float64 `json:"solver_stock,omitempty" yaml:"solver_stock,omitempty"`
	ObjectiveValue float64   `json:"objective_value" yaml:"objective_value"`
	Message        string    `json:"message,omitempty" yaml:"message,omitempty"`
}

// Unsolved builds a result that carries only a status and a message.
func Unsolved(status Status, message string) PlanningResult {
	return PlanningResult{Status: status, Message: message}
}

// ReplayStock recomputes the ending stock of every period from the production
// levels and the input.
func ReplayStock(in PlanningInput, production []float64) []float64 {
	factor := in.Params.EffectiveFactor()
	stock := in.InitialStock
	out := make([]float64, len(production))
	for t, p := range production {
		stock = stock + p*factor - in.Demand[t]
		out[t] = stock
	}
	return out
}
