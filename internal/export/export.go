// Package export converts tabular dashboard data into downloadable files.
package export

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Format identifies an output encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// ErrUnsupportedFormat is returned for unknown formats, including pdf.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// ParseFormat normalises a user supplied format name.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatXLSX, FormatJSON, FormatParquet:
		return f, nil
	case "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}

// Table is the in-memory shape every exporter consumes.
type Table struct {
	Name     string            `json:"name"`
	Columns  []string          `json:"columns"`
	Rows     [][]any           `json:"rows"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ValidationError carries the problems reported by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "export: invalid table: " + strings.Join(e.Problems, "; ")
}

// Validate lists shape problems in t. An empty result means the table can be exported.
func Validate(t Table) []string {
	var problems []string

	if len(t.Columns) == 0 {
		problems = append(problems, "no columns defined")
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for i, col := range t.Columns {
		name := strings.TrimSpace(col)
		if name == "" {
			problems = append(problems, fmt.Sprintf("column %d has an empty name", i+1))
			continue
		}
		if _, dup := seen[name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate column %q", name))
		}
		seen[name] = struct{}{}
	}

	if len(t.Rows) == 0 {
		problems = append(problems, "no data rows to export")
	}
	if len(t.Columns) > 0 {
		for i, row := range t.Rows {
			if len(row) != len(t.Columns) {
				problems = append(problems, fmt.Sprintf("row %d has %d values, expected %d", i+1, len(row), len(t.Columns)))
			}
		}
	}

	return problems
}

// Exporter writes tables in any supported format.
type Exporter struct {
	now func() time.Time
}

// Option customises an Exporter.
type Option func(*Exporter)

// WithClock overrides the timestamp source for exportedAt and file names.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export validates t and writes it to w in format f.
func (e *Exporter) Export(w io.Writer, f Format, t Table) error {
	if problems := Validate(t); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	switch f {
	case FormatCSV:
		return writeCSV(w, t)
	case FormatXLSX:
		return writeXLSX(w, t, e.now().UTC())
	case FormatJSON:
		return writeJSON(w, t, e.now().UTC())
	case FormatParquet:
		return writeParquet(w, t)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// Filename suggests a download name such as "veloigp-operators-20240301-150405.csv".
func (e *Exporter) Filename(t Table, f Format) string {
	name := sanitizeName(t.Name)
	if name == "" {
		name = "export"
	}
	return fmt.Sprintf("veloigp-%s-%s.%s", name, e.now().UTC().Format("20060102-150405"), f)
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	return b.String()
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
