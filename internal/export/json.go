package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

type jsonDocument struct {
	Name       string            `json:"name,omitempty"`
	ExportedAt time.Time         `json:"exportedAt"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Columns    []string          `json:"columns"`
	Data       []map[string]any  `json:"data"`
}

func writeJSON(w io.Writer, t Table, exportedAt time.Time) error {
	doc := jsonDocument{
		Name:       t.Name,
		ExportedAt: exportedAt,
		Metadata:   t.Metadata,
		Columns:    t.Columns,
		Data:       make([]map[string]any, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		record := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			record[col] = row[i]
		}
		doc.Data = append(doc.Data, record)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	return nil
}
