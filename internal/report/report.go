// Package report renders plan runs for people and for downstream tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
)

// Format is an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// SyntheticTag marks file names and object keys of runs planned on synthetic
// data. CSV exports carry no banner, so the name is the only marker.
const SyntheticTag = "synthetic"

// MarkSynthetic inserts SyntheticTag before the extension of name when run
// was planned on synthetic data; other names are returned unchanged.
func MarkSynthetic(run *domain.PlanRun, name string) string {
	if run == nil || !run.Synthetic() {
		return name
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "." + SyntheticTag + ext
}

// Row is one period of a plan in chronological order.
type Row struct {
	Period      string
	Production  float64
	EndingStock float64
	Demand      float64
	SafetyStock float64
	// Solved is false when the run carries no schedule; Production and
	// EndingStock are then meaningless.
	Solved bool
}

// Rows lays a result out per period against the input that produced it.
func Rows(in domain.PlanningInput, result domain.PlanningResult) []Row {
	solved := result.Status == domain.StatusOptimal &&
		len(result.ProductionLevels) == in.N() &&
		len(result.EndingStock) == in.N()

	rows := make([]Row, in.N())
	for t := range rows {
		rows[t] = Row{
			Period:      in.Periods[t],
			Demand:      in.Demand[t],
			SafetyStock: in.SafetyStock[t],
			Solved:      solved,
		}
		if solved {
			rows[t].Production = result.ProductionLevels[t]
			rows[t].EndingStock = result.EndingStock[t]
		}
	}
	return rows
}

// RunRows returns the rows of a run, using the input that produced the
// accepted result.
func RunRows(run *domain.PlanRun) []Row {
	return Rows(run.Effective, run.Result)
}

// Writer renders runs in any supported format.
type Writer struct {
	// Precision is the number of decimal places used in CSV output.
	Precision int32
}

// NewWriter returns a writer that rounds CSV quantities to precision places.
func NewWriter(precision int32) *Writer {
	if precision < 0 {
		precision = 0
	}
	return &Writer{Precision: precision}
}

// Write renders run in the given format.
func (w *Writer) Write(out io.Writer, run *domain.PlanRun, format Format) error {
	switch format {
	case FormatJSON:
		return WriteJSON(out, run)
	case FormatYAML:
		return WriteYAML(out, run)
	case FormatCSV:
		return WriteCSV(out, RunRows(run), w.Precision)
	case FormatText, "":
		return WriteText(out, run)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// WriteJSON writes the whole run as indented JSON.
func WriteJSON(w io.Writer, run *domain.PlanRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("failed to encode run as json: %w", err)
	}
	return nil
}

// WriteYAML writes the whole run as YAML.
func WriteYAML(w io.Writer, run *domain.PlanRun) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("failed to encode run as yaml: %w", err)
	}
	return enc.Close()
}
