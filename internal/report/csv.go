package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// CSVHeader is the column set of exported plans.
var CSVHeader = []string{"Periodo", "Produccion", "Stock_Final", "Demanda", "Stock_Seguridad"}

// WriteCSV writes one row per period. Quantities are rounded half away from
// zero to precision decimal places; an unsolved run leaves production and
// stock blank.
func WriteCSV(w io.Writer, rows []Row, precision int32) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range rows {
		production, stock := "", ""
		if r.Solved {
			production = round(r.Production, precision)
			stock = round(r.EndingStock, precision)
		}
		record := []string{
			r.Period,
			production,
			stock,
			round(r.Demand, precision),
			round(r.SafetyStock, precision),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", r.Period, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func round(v float64, precision int32) string {
	return decimal.NewFromFloat(v).StringFixed(precision)
}
