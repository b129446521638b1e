package domain

// CorrectionKind classifies a value the normalizer had to repair.
type CorrectionKind string

const (
	CorrectionImputed         CorrectionKind = "imputed"
	CorrectionClampedNegative CorrectionKind = "clamped_negative"
	CorrectionClampedExtreme  CorrectionKind = "clamped_extreme"
	CorrectionTruncated       CorrectionKind = "truncated"
	CorrectionMissingColumn   CorrectionKind = "missing_column"
)

// Correction is a non-fatal data-quality warning. Corrections are accumulated
// and always surfaced in the final report.
type Correction struct {
	Index    int            `json:"index" yaml:"index"`
	Period   string         `json:"period,omitempty" yaml:"period,omitempty"`
	Field    string         `json:"field" yaml:"field"`
	Kind     CorrectionKind `json:"kind" yaml:"kind"`
	Original string         `json:"original,omitempty" yaml:"original,omitempty"`
	Value    float64        `json:"value" yaml:"value"`
	Message  string         `json:"message" yaml:"message"`
}

// Provenance tells whether an input came from the caller's data or was
// fabricated as a placeholder.
type Provenance string

const (
	ProvenanceAuthoritative Provenance = "authoritative"
	ProvenanceSynthetic     Provenance = "synthetic"
)

// NormalizedInput is either Authoritative(input) or Synthetic(input, reason).
// The input is only reachable through accessors that also hand back the
// provenance.
type NormalizedInput struct {
	input          PlanningInput
	provenance     Provenance
	reason         string
	Corrections    []Correction
	MissingColumns []string
}

// NewAuthoritative wraps an input built from real data.
func NewAuthoritative(in PlanningInput, corrections []Correction, missing []string) NormalizedInput {
	return NormalizedInput{
		input:          in,
		provenance:     ProvenanceAuthoritative,
		Corrections:    corrections,
		MissingColumns: missing,
	}
}

// NewSynthetic wraps a fabricated placeholder input together with the reason
// the real data could not be used.
func NewSynthetic(in PlanningInput, reason string) NormalizedInput {
	return NormalizedInput{
		input:      in,
		provenance: ProvenanceSynthetic,
		reason:     reason,
	}
}

// Authoritative returns the input when it was built from real data.
func (n NormalizedInput) Authoritative() (PlanningInput, bool) {
	if n.provenance != ProvenanceAuthoritative {
		return PlanningInput{}, false
	}
	return n.input, true
}

// Synthetic returns the placeholder input and the fallback reason.
func (n NormalizedInput) Synthetic() (PlanningInput, string, bool) {
	if n.provenance != ProvenanceSynthetic {
		return PlanningInput{}, "", false
	}
	return n.input, n.reason, true
}

// Input returns the input together with its provenance.
func (n NormalizedInput) Input() (PlanningInput, Provenance) {
	return n.input, n.provenance
}

// Provenance returns the provenance tag.
func (n NormalizedInput) Provenance() Provenance {
	return n.provenance
}

// Reason is the synthetic fallback reason, empty for authoritative inputs.
func (n NormalizedInput) Reason() string {
	return n.reason
}

// WithParams returns a copy whose input uses the given parameters.
func (n NormalizedInput) WithParams(p Parameters) NormalizedInput {
	n.input = n.input.Clone()
	n.input.Params = p
	return n
}
