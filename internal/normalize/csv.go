package normalize

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// RawTable is an untyped tabular source: a header row plus string cells.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of a column matched case-sensitively, or -1.
func (t RawTable) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed cell at (row, col), empty when the row is short.
func (t RawTable) Cell(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// ReadCSV parses a comma-separated source whose first record is the header.
// Header names are trimmed; rows may be shorter than the header.
func ReadCSV(r io.Reader) (RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return RawTable{}, fmt.Errorf("empty csv source")
		}
		return RawTable{}, fmt.Errorf("failed to read csv header: %w", err)
	}

	table := RawTable{Header: make([]string, len(header))}
	for i, h := range header {
		table.Header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return RawTable{}, fmt.Errorf("failed to read csv record: %w", err)
		}
		table.Rows = append(table.Rows, record)
	}

	return table, nil
}

// ReadCSVFile opens and parses a CSV file.
func ReadCSVFile(path string) (RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return RawTable{}, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer f.Close()

	return ReadCSV(f)
}
