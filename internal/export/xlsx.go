package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet  = "Sheet1"
	metadataSheet = "Metadata"
	maxSheetName  = 31
)

func writeXLSX(w io.Writer, t Table, exportedAt time.Time) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := sheetName(t.Name)
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("export: rename sheet: %w", err)
		}
	}

	header := make([]any, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	for r, row := range t.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = xlsxValue(v)
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("export: cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
			return fmt.Errorf("export: write row %d: %w", r+1, err)
		}
	}

	if len(t.Metadata) > 0 {
		if err := writeMetadataSheet(f, t.Metadata, exportedAt); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeMetadataSheet(f *excelize.File, metadata map[string]string, exportedAt time.Time) error {
	if _, err := f.NewSheet(metadataSheet); err != nil {
		return fmt.Errorf("export: create metadata sheet: %w", err)
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := [][]any{{"exportedAt", exportedAt.Format(time.RFC3339)}}
	for _, k := range keys {
		rows = append(rows, []any{k, metadata[k]})
	}
	for i, row := range rows {
		axis, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(metadataSheet, axis, &row); err != nil {
			return fmt.Errorf("export: write metadata: %w", err)
		}
	}
	return nil
}

// xlsxValue keeps numbers numeric and stringifies everything else.
func xlsxValue(v any) any {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return v
	default:
		return formatCell(v)
	}
}

func sheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if cleaned == "" || strings.EqualFold(cleaned, metadataSheet) {
		return defaultSheet
	}
	if runes := []rune(cleaned); len(runes) > maxSheetName {
		cleaned = string(runes[:maxSheetName])
	}
	return cleaned
}
