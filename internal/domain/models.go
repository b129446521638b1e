package domain

import (
	"fmt"
	"strings"
	"time"
)

// AttemptRecord is one entry of the recovery trail.
type AttemptRecord struct {
	Attempt    int    `json:"attempt" yaml:"attempt"`
	Relaxation string `json:"relaxation" yaml:"relaxation"`
	Status     Status `json:"status" yaml:"status"`
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Diagnostic explains a non-optimal outcome in terms of the input data.
type Diagnostic struct {
	TotalDemand              float64 `json:"total_demand" yaml:"total_demand"`
	MaxTheoreticalProduction float64 `json:"max_theoretical_production" yaml:"max_theoretical_production"`
	InitialStock             float64 `json:"initial_stock" yaml:"initial_stock"`
	FirstSafetyStock         float64 `json:"first_safety_stock" yaml:"first_safety_stock"`
	CapacityShortfall        bool    `json:"capacity_shortfall" yaml:"capacity_shortfall"`
	InitialBelowSafety       bool    `json:"initial_below_safety" yaml:"initial_below_safety"`
	TerminalSurplus          bool    `json:"terminal_surplus" yaml:"terminal_surplus"`
}

// String renders the diagnostic for end users.
func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "total demand %.2f vs maximum theoretical production %.2f (initial stock %.2f)",
		d.TotalDemand, d.MaxTheoreticalProduction, d.InitialStock)
	if d.CapacityShortfall {
		b.WriteString("; total demand exceeds production capacity plus initial stock, raise max production or reduce demand")
	}
	if d.InitialBelowSafety {
		fmt.Fprintf(&b, "; initial stock %.2f is below the first period safety stock %.2f", d.InitialStock, d.FirstSafetyStock)
	}
	if d.TerminalSurplus {
		b.WriteString("; initial stock alone exceeds total demand, so a zero terminal stock is unreachable")
	}
	if !d.CapacityShortfall && !d.InitialBelowSafety && !d.TerminalSurplus {
		b.WriteString("; no aggregate cause found, check per-period safety stocks against capacity")
	}
	return b.String()
}

// PlanRun is the final report of one planning request.
type PlanRun struct {
	ID                string          `json:"id" yaml:"id" db:"id"`
	CreatedAt         time.Time       `json:"created_at" yaml:"created_at" db:"-"`
	Source            string          `json:"source" yaml:"source" db:"source"`
	Provenance        Provenance      `json:"provenance" yaml:"provenance" db:"provenance"`
	SyntheticReason   string          `json:"synthetic_reason,omitempty" yaml:"synthetic_reason,omitempty" db:"synthetic_reason"`
	Corrections       []Correction    `json:"corrections" yaml:"corrections" db:"-"`
	MissingColumns    []string        `json:"missing_columns,omitempty" yaml:"missing_columns,omitempty" db:"-"`
	Input             PlanningInput   `json:"input" yaml:"input" db:"-"`
	Effective         PlanningInput   `json:"effective_input" yaml:"effective_input" db:"-"`
	Result            PlanningResult  `json:"result" yaml:"result" db:"-"`
	Attempt           int             `json:"attempt" yaml:"attempt" db:"attempt"`
	Relaxation        string          `json:"relaxation,omitempty" yaml:"relaxation,omitempty" db:"relaxation"`
	Trail             []AttemptRecord `json:"trail,omitempty" yaml:"trail,omitempty" db:"-"`
	Valid             bool            `json:"valid" yaml:"valid" db:"valid"`
	ValidationMessage string          `json:"validation_message" yaml:"validation_message" db:"validation_message"`
	Diagnostic        *Diagnostic     `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty" db:"-"`
}

// Synthetic reports whether the run was computed on placeholder data.
func (r *PlanRun) Synthetic() bool {
	return r.Provenance == ProvenanceSynthetic
}

// Relaxed reports whether the accepted result came from a relaxed input.
func (r *PlanRun) Relaxed() bool {
	return r.Attempt > 0
}

// RunSummary is the listing view of a plan run.
type RunSummary struct {
	ID             string     `json:"id" db:"id"`
	CreatedAt      time.Time  `json:"created_at" db:"-"`
	Source         string     `json:"source" db:"source"`
	Provenance     Provenance `json:"provenance" db:"provenance"`
	Status         Status     `json:"status" db:"-"`
	Attempt        int        `json:"attempt" db:"attempt"`
	Periods        int        `json:"periods" db:"periods"`
	ObjectiveValue float64    `json:"objective_value" db:"objective_value"`
	Valid          bool       `json:"valid" db:"valid"`
}
