package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/parquet-go/parquet-go"
)

// writeParquet stores every cell as a UTF-8 string column. Group orders
// fields by name, so values are laid out by sorted column index.
func writeParquet(w io.Writer, t Table) error {
	group := make(parquet.Group, len(t.Columns))
	for _, col := range t.Columns {
		group[col] = parquet.Compressed(parquet.String(), &parquet.Snappy)
	}
	name := sanitizeName(t.Name)
	if name == "" {
		name = "export"
	}
	schema := parquet.NewSchema(name, group)

	sorted := append([]string(nil), t.Columns...)
	sort.Strings(sorted)
	columnIndex := make(map[string]int, len(sorted))
	for i, col := range sorted {
		columnIndex[col] = i
	}

	rows := make([]parquet.Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		values := make(parquet.Row, len(t.Columns))
		for i, col := range t.Columns {
			idx := columnIndex[col]
			values[idx] = parquet.ValueOf(formatCell(row[i])).Level(0, 0, idx)
		}
		rows = append(rows, values)
	}

	writer := parquet.NewWriter(w, schema)
	if _, err := writer.WriteRows(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("export: write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("export: close parquet writer: %w", err)
	}
	return nil
}
