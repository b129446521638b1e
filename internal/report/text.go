package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
)

// SummaryPeriods is how many periods the text report tabulates.
const SummaryPeriods = 10

// SyntheticBanner heads every text report computed on placeholder data.
const SyntheticBanner = "SYNTHETIC DATA: not authoritative, the input could not be read"

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(20)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))
)

// WriteText renders a terminal report. Synthetic runs always open with the
// synthetic banner.
func WriteText(w io.Writer, run *domain.PlanRun) error {
	var sections []string

	if run.Synthetic() {
		banner := SyntheticBanner
		if run.SyntheticReason != "" {
			banner += " (" + run.SyntheticReason + ")"
		}
		sections = append(sections, bannerStyle.Render(banner))
	}

	sections = append(sections, titleStyle.Render("Production plan "+run.ID))

	status := run.Result.Status.String()
	if run.Result.Status == domain.StatusOptimal {
		status = okStyle.Render(status)
	} else {
		status = failStyle.Render(status)
	}

	lines := []string{
		field("Source", run.Source),
		field("Status", status),
	}
	if run.Result.Status == domain.StatusOptimal {
		lines = append(lines, field("Total production", fmt.Sprintf("%.2f", run.Result.ObjectiveValue)))
	}
	if run.Relaxed() {
		lines = append(lines, field("Recovered", warnStyle.Render(fmt.Sprintf("attempt %d (%s)", run.Attempt, run.Relaxation))))
	}

	validation := okStyle.Render(run.ValidationMessage)
	if !run.Valid {
		validation = failStyle.Render(run.ValidationMessage)
	}
	lines = append(lines, field("Validation", validation))
	if run.Result.Message != "" {
		lines = append(lines, field("Solver", run.Result.Message))
	}
	sections = append(sections, strings.Join(lines, "\n"))

	if run.Diagnostic != nil {
		sections = append(sections, headerStyle.Render("Diagnostic")+"\n"+run.Diagnostic.String())
	}

	if len(run.Trail) > 1 {
		var b strings.Builder
		b.WriteString(headerStyle.Render("Attempts"))
		for _, a := range run.Trail {
			fmt.Fprintf(&b, "\n  %d %-14s %s", a.Attempt, a.Relaxation, a.Status)
		}
		sections = append(sections, b.String())
	}

	if len(run.Corrections) > 0 {
		var b strings.Builder
		b.WriteString(warnStyle.Render(fmt.Sprintf("Data corrections (%d)", len(run.Corrections))))
		for _, c := range run.Corrections {
			b.WriteString("\n  - " + c.Message)
		}
		sections = append(sections, b.String())
	}

	if table := summaryTable(RunRows(run)); table != "" {
		sections = append(sections, table)
	}

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, joinSections(sections)...))
	return err
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}

func joinSections(sections []string) []string {
	out := make([]string, 0, 2*len(sections))
	for i, s := range sections {
		if i > 0 {
			out = append(out, "")
		}
		out = append(out, s)
	}
	return out
}

func summaryTable(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s %12s %12s %12s %12s", "Periodo", "Produccion", "Stock_Final", "Demanda", "Stock_Seg")))
	limit := len(rows)
	if limit > SummaryPeriods {
		limit = SummaryPeriods
	}
	for _, r := range rows[:limit] {
		production, stock := "-", "-"
		if r.Solved {
			production = fmt.Sprintf("%.2f", r.Production)
			stock = fmt.Sprintf("%.2f", r.EndingStock)
		}
		fmt.Fprintf(&b, "\n%-12s %12s %12s %12.2f %12.2f", r.Period, production, stock, r.Demand, r.SafetyStock)
	}
	if len(rows) > limit {
		fmt.Fprintf(&b, "\n... %d more periods", len(rows)-limit)
	}
	return b.String()
}
