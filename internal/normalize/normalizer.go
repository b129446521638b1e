package normalize

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/pkg/logger"
)

// Known column names, matched case-sensitively.
const (
	ColumnPeriod      = "Periodo"
	ColumnDemand      = "Demanda"
	ColumnSafetyStock = "Stock_Seguridad"
	ColumnFinalStock  = "Stock_Final"
)

// Options holds the sanity thresholds and the planning parameters attached to
// every normalized input.
type Options struct {
	Horizon        int
	DemandCeiling  float64
	DemandNominal  float64
	SafetyCeiling  float64
	SafetyNominal  float64
	InitialCeiling float64
	InitialNominal float64
	Params         domain.Parameters
}

// DefaultOptions returns the thresholds used when nothing is configured.
func DefaultOptions(params domain.Parameters) Options {
	return Options{
		Horizon:        52,
		DemandCeiling:  1e6,
		DemandNominal:  1000,
		SafetyCeiling:  1e6,
		SafetyNominal:  100,
		InitialCeiling: 1e9,
		InitialNominal: 1000,
		Params:         params,
	}
}

// Normalizer validates and repairs raw planning data.
type Normalizer struct {
	opts Options
}

// New creates a normalizer. Zero thresholds fall back to the defaults.
func New(opts Options) *Normalizer {
	def := DefaultOptions(opts.Params)
	if opts.Horizon <= 0 {
		opts.Horizon = def.Horizon
	}
	if opts.DemandCeiling <= 0 {
		opts.DemandCeiling = def.DemandCeiling
	}
	if opts.DemandNominal <= 0 {
		opts.DemandNominal = def.DemandNominal
	}
	if opts.SafetyCeiling <= 0 {
		opts.SafetyCeiling = def.SafetyCeiling
	}
	if opts.SafetyNominal <= 0 {
		opts.SafetyNominal = def.SafetyNominal
	}
	if opts.InitialCeiling <= 0 {
		opts.InitialCeiling = def.InitialCeiling
	}
	if opts.InitialNominal <= 0 {
		opts.InitialNominal = def.InitialNominal
	}
	return &Normalizer{opts: opts}
}

// Options returns the effective options.
func (n *Normalizer) Options() Options {
	return n.opts
}

// NormalizeFile reads a CSV file and normalizes it. Read failures produce a
// synthetic instance instead of an error.
func (n *Normalizer) NormalizeFile(path string) domain.NormalizedInput {
	table, err := ReadCSVFile(path)
	if err != nil {
		return n.synthetic(fmt.Sprintf("could not parse %s: %v", path, err))
	}
	return n.Normalize(table)
}

// NormalizeReader is NormalizeFile for an already opened source such as an
// uploaded file. name only labels the synthetic fallback reason.
func (n *Normalizer) NormalizeReader(name string, r io.Reader) domain.NormalizedInput {
	table, err := ReadCSV(r)
	if err != nil {
		return n.synthetic(fmt.Sprintf("could not parse %s: %v", name, err))
	}
	return n.Normalize(table)
}

// Normalize turns a raw table into a planning input. An unexpected schema
// yields a synthetic instance.
func (n *Normalizer) Normalize(table RawTable) domain.NormalizedInput {
	periodCol := table.Column(ColumnPeriod)
	if periodCol < 0 {
		return n.synthetic(fmt.Sprintf("required column %q not found in %v", ColumnPeriod, table.Header))
	}
	if len(table.Rows) == 0 {
		return n.synthetic("source has no data rows")
	}

	var (
		corrections []domain.Correction
		missing     []string
	)

	demandCol := table.Column(ColumnDemand)
	if demandCol < 0 {
		missing = append(missing, ColumnDemand)
		corrections = append(corrections, missingColumn(ColumnDemand, "demand"))
	}
	safetyCol := table.Column(ColumnSafetyStock)
	if safetyCol < 0 {
		missing = append(missing, ColumnSafetyStock)
		corrections = append(corrections, missingColumn(ColumnSafetyStock, "safety_stock"))
	}

	initial, initCorrections := n.initialStockFromHistory(table, table.Column(ColumnFinalStock))
	corrections = append(corrections, initCorrections...)

	rows := len(table.Rows)
	if rows > n.opts.Horizon {
		corrections = append(corrections, domain.Correction{
			Index:   n.opts.Horizon,
			Field:   "periods",
			Kind:    domain.CorrectionTruncated,
			Value:   float64(rows),
			Message: fmt.Sprintf("%d periods exceed the horizon of %d, trailing periods dropped", rows, n.opts.Horizon),
		})
		rows = n.opts.Horizon
	}

	in := domain.PlanningInput{
		Periods:      make([]string, rows),
		Demand:       make([]float64, rows),
		SafetyStock:  make([]float64, rows),
		InitialStock: initial,
		Params:       n.opts.Params,
	}

	for i := 0; i < rows; i++ {
		label := table.Cell(i, periodCol)
		if label == "" {
			label = strconv.Itoa(i + 1)
		}
		in.Periods[i] = label

		if demandCol >= 0 {
			var c []domain.Correction
			in.Demand[i], c = n.cleanDemand(i, label, table.Cell(i, demandCol))
			corrections = append(corrections, c...)
		}
		if safetyCol >= 0 {
			var c []domain.Correction
			in.SafetyStock[i], c = n.cleanSafety(i, label, table.Cell(i, safetyCol))
			corrections = append(corrections, c...)
		}
	}

	for _, c := range corrections {
		logger.Log.Debug().
			Str("field", c.Field).
			Str("period", c.Period).
			Str("kind", string(c.Kind)).
			Msg(c.Message)
	}

	return domain.NewAuthoritative(in, corrections, missing)
}

// NormalizeSeries normalizes already-typed series. Mismatched lengths are a
// ConfigurationError; a nil safety series defaults to zeros and empty period
// labels are generated as 1..N.
func (n *Normalizer) NormalizeSeries(periods []string, demand, safety []float64, initial float64) (domain.NormalizedInput, error) {
	size := len(demand)
	if size == 0 {
		return domain.NormalizedInput{}, domain.NewConfigurationError("demand", "at least one period is required")
	}
	if safety == nil {
		safety = make([]float64, size)
	}
	if len(safety) != size {
		return domain.NormalizedInput{}, domain.NewConfigurationError("safety_stock", "length %d does not match demand length %d", len(safety), size)
	}
	if len(periods) == 0 {
		periods = make([]string, size)
		for i := range periods {
			periods[i] = strconv.Itoa(i + 1)
		}
	}
	if len(periods) != size {
		return domain.NormalizedInput{}, domain.NewConfigurationError("periods", "length %d does not match demand length %d", len(periods), size)
	}

	var corrections []domain.Correction
	if size > n.opts.Horizon {
		corrections = append(corrections, domain.Correction{
			Index:   n.opts.Horizon,
			Field:   "periods",
			Kind:    domain.CorrectionTruncated,
			Value:   float64(size),
			Message: fmt.Sprintf("%d periods exceed the horizon of %d, trailing periods dropped", size, n.opts.Horizon),
		})
		size = n.opts.Horizon
	}

	in := domain.PlanningInput{
		Periods:     append([]string(nil), periods[:size]...),
		Demand:      make([]float64, size),
		SafetyStock: make([]float64, size),
		Params:      n.opts.Params,
	}
	for i := 0; i < size; i++ {
		var c []domain.Correction
		in.Demand[i], c = n.clampDemand(i, in.Periods[i], demand[i], formatRaw(demand[i]))
		corrections = append(corrections, c...)
		in.SafetyStock[i], c = n.clampSafety(i, in.Periods[i], safety[i], formatRaw(safety[i]))
		corrections = append(corrections, c...)
	}

	var c []domain.Correction
	in.InitialStock, c = n.clampInitial(initial, formatRaw(initial))
	corrections = append(corrections, c...)

	return domain.NewAuthoritative(in, corrections, nil), nil
}

// initialStockFromHistory takes the last numeric ending-stock value of the
// whole history, before any horizon cap.
func (n *Normalizer) initialStockFromHistory(table RawTable, col int) (float64, []domain.Correction) {
	if col < 0 {
		return 0, nil
	}
	for i := len(table.Rows) - 1; i >= 0; i-- {
		raw := table.Cell(i, col)
		if v, ok := parseNumber(raw); ok {
			return n.clampInitial(v, raw)
		}
	}
	return 0, nil
}

func (n *Normalizer) cleanDemand(i int, period, raw string) (float64, []domain.Correction) {
	v, ok := parseNumber(raw)
	if !ok {
		return 0, []domain.Correction{imputed(i, period, "demand", raw)}
	}
	return n.clampDemand(i, period, v, raw)
}

func (n *Normalizer) cleanSafety(i int, period, raw string) (float64, []domain.Correction) {
	v, ok := parseNumber(raw)
	if !ok {
		return 0, []domain.Correction{imputed(i, period, "safety_stock", raw)}
	}
	return n.clampSafety(i, period, v, raw)
}

func (n *Normalizer) clampDemand(i int, period string, v float64, raw string) (float64, []domain.Correction) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, []domain.Correction{imputed(i, period, "demand", raw)}
	case v < 0:
		return 0, []domain.Correction{clamped(i, period, "demand", raw, 0, domain.CorrectionClampedNegative)}
	case v > n.opts.DemandCeiling:
		return n.opts.DemandNominal, []domain.Correction{clamped(i, period, "demand", raw, n.opts.DemandNominal, domain.CorrectionClampedExtreme)}
	}
	return v, nil
}

func (n *Normalizer) clampSafety(i int, period string, v float64, raw string) (float64, []domain.Correction) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, []domain.Correction{imputed(i, period, "safety_stock", raw)}
	case v < 0:
		return 0, []domain.Correction{clamped(i, period, "safety_stock", raw, 0, domain.CorrectionClampedNegative)}
	case v > n.opts.SafetyCeiling:
		return n.opts.SafetyNominal, []domain.Correction{clamped(i, period, "safety_stock", raw, n.opts.SafetyNominal, domain.CorrectionClampedExtreme)}
	}
	return v, nil
}

func (n *Normalizer) clampInitial(v float64, raw string) (float64, []domain.Correction) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, []domain.Correction{imputed(-1, "", "initial_stock", raw)}
	case v < 0:
		return 0, []domain.Correction{clamped(-1, "", "initial_stock", raw, 0, domain.CorrectionClampedNegative)}
	case math.Abs(v) > n.opts.InitialCeiling:
		return n.opts.InitialNominal, []domain.Correction{clamped(-1, "", "initial_stock", raw, n.opts.InitialNominal, domain.CorrectionClampedExtreme)}
	}
	return v, nil
}

// synthetic builds the placeholder instance used when the source cannot be
// understood at all.
func (n *Normalizer) synthetic(reason string) domain.NormalizedInput {
	logger.Log.Warn().Str("reason", reason).Msg("normalizer: falling back to synthetic planning data")

	in := domain.PlanningInput{
		Periods:      []string{"Semana 1", "Semana 2", "Semana 3", "Semana 4", "Semana 5"},
		Demand:       []float64{100, 120, 140, 110, 130},
		SafetyStock:  []float64{20, 20, 20, 20, 0},
		InitialStock: 50,
		Params:       n.opts.Params,
	}
	return domain.NewSynthetic(in, reason)
}

// groupedNumber matches comma thousands separators such as 2,000,000 or
// 1,234.5. A lone decimal comma ("1,5") stays non-numeric.
var groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

func parseNumber(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if groupedNumber.MatchString(raw) {
		raw = strings.ReplaceAll(raw, ",", "")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func formatRaw(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func imputed(i int, period, field, raw string) domain.Correction {
	return domain.Correction{
		Index:    i,
		Period:   period,
		Field:    field,
		Kind:     domain.CorrectionImputed,
		Original: raw,
		Value:    0,
		Message:  fmt.Sprintf("%s in period %s is missing or not numeric (%q), using 0", field, period, raw),
	}
}

func clamped(i int, period, field, raw string, value float64, kind domain.CorrectionKind) domain.Correction {
	where := "period " + period
	if i < 0 {
		where = "history"
	}
	return domain.Correction{
		Index:    i,
		Period:   period,
		Field:    field,
		Kind:     kind,
		Original: raw,
		Value:    value,
		Message:  fmt.Sprintf("%s in %s corrected: %s -> %g", field, where, raw, value),
	}
}

func missingColumn(column, field string) domain.Correction {
	return domain.Correction{
		Index:    -1,
		Field:    field,
		Kind:     domain.CorrectionMissingColumn,
		Original: column,
		Message:  fmt.Sprintf("column %q not found, %s set to 0 for every period", column, field),
	}
}
