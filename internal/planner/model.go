package planner

import (
	"gonum.org/v1/gonum/mat"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
)

// StandardForm is the program minimize cᵀx subject to Ax = b, x ≥ 0.
//
// Columns are laid out as [P_0..P_{N-1}, s_0..s_{N-1}, u_0..u_{N-1}] where
// P_t is raw production, s_t = stock[t] - safetyStock[t] is the slack above
// the floor and u_t = maxProduction - P_t is the unused capacity.
type StandardForm struct {
	C []float64
	A *mat.Dense
	B []float64

	Periods int
	Policy  domain.TerminalPolicy
}

// Solution is the raw backend answer to a StandardForm.
type Solution struct {
	X         []float64
	Objective float64
}

func (f StandardForm) production(x []float64) []float64 {
	return x[:f.Periods]
}

func (f StandardForm) slack(x []float64) []float64 {
	return x[f.Periods : 2*f.Periods]
}

// BuildStandardForm encodes the planning model:
//
//	balance   s_t - s_{t-1} - k*P_t = ss_{t-1} - ss_t - d_t   (s_{-1} term replaced by the initial stock)
//	capacity  P_t + u_t = maxProduction
//	terminal  s_{N-1} = -ss_{N-1}                              (ExactZero only)
//
// with k = yield * density. The input must already be validated.
func BuildStandardForm(in domain.PlanningInput) StandardForm {
	n := in.N()
	k := in.Params.EffectiveFactor()
	policy := in.Terminal()

	rows := 2 * n
	if policy == domain.TerminalExactZero {
		rows++
	}
	cols := 3 * n

	a := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	c := make([]float64, cols)

	sign := 1.0
	if in.Params.Objective == domain.Maximize {
		sign = -1
	}

	for t := 0; t < n; t++ {
		p, s, u := t, n+t, 2*n+t

		c[p] = sign

		// balance row t
		a.Set(t, s, 1)
		a.Set(t, p, -k)
		if t == 0 {
			b[t] = in.InitialStock - in.Demand[0] - in.SafetyStock[0]
		} else {
			a.Set(t, s-1, -1)
			b[t] = in.SafetyStock[t-1] - in.SafetyStock[t] - in.Demand[t]
		}

		// capacity row t
		a.Set(n+t, p, 1)
		a.Set(n+t, u, 1)
		b[n+t] = in.Params.MaxProduction
	}

	if policy == domain.TerminalExactZero {
		a.Set(2*n, 2*n-1, 1)
		b[2*n] = -in.SafetyStock[n-1]
	}

	return StandardForm{
		C:       c,
		A:       a,
		B:       b,
		Periods: n,
		Policy:  policy,
	}
}
