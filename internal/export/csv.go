package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// writeCSV emits RFC 4180 output: fields holding a comma, quote or newline are
// quoted and embedded quotes are doubled.
func writeCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("export: write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
