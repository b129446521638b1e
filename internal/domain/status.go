package domain

import "strings"

// Status is the solver-reported outcome of a single solve attempt.
type Status int

const (
	StatusNotSolved Status = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
)

var statusLabels = map[Status]string{
	StatusNotSolved:  "NotSolved",
	StatusOptimal:    "Optimal",
	StatusInfeasible: "Infeasible",
	StatusUnbounded:  "Unbounded",
}

var statusCodes = map[string]Status{
	"notsolved":  StatusNotSolved,
	"not_solved": StatusNotSolved,
	"optimal":    StatusOptimal,
	"infeasible": StatusInfeasible,
	"unbounded":  StatusUnbounded,
}

// String returns the human-readable label for a status.
func (s Status) String() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}

	return "NotSolved"
}

// ParseStatus returns the status for a given label (case-insensitive).
func ParseStatus(label string) (Status, bool) {
	status, ok := statusCodes[strings.ToLower(strings.TrimSpace(label))]

	return status, ok
}

// MarshalText encodes the status as its label.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status label; unknown labels decode to NotSolved.
func (s *Status) UnmarshalText(text []byte) error {
	status, ok := ParseStatus(string(text))
	if !ok {
		status = StatusNotSolved
	}
	*s = status
	return nil
}

// Solved reports whether the status carries a usable schedule.
func (s Status) Solved() bool {
	return s == StatusOptimal
}
