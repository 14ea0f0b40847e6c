// Package record reads categorized export files into untyped raw
// rows. It owns delimiter detection, BOM handling, header validation,
// and row padding; everything semantic happens downstream.
package record

import (
	"fmt"

	"github.com/refgraph/refgraph/internal/category"
)

// RawRecord is one untyped row from an export file: the raw cell
// under each recognized column header, tagged with where it came
// from. Values are preserved exactly as exported; nothing is trimmed
// or split here.
type RawRecord struct {
	Path     string
	Category category.Category
	Row      int // 1-based file line of the row, for skip reports
	Columns  []string
	Values   map[string]string
}

// Value returns the raw cell under the given column header.
func (r *RawRecord) Value(col string) string {
	return r.Values[col]
}

// MalformedInputError reports a file whose tabular structure cannot
// be parsed: a missing or empty header, or a row the CSV layer
// rejects. It is fatal for that file only; other files continue.
type MalformedInputError struct {
	Path   string
	Row    int // 0 when the problem is the header or the file itself
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("malformed input %s row %d: %s", e.Path, e.Row, e.Reason)
	}
	return fmt.Sprintf("malformed input %s: %s", e.Path, e.Reason)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}
