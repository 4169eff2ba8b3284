package table

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes a header line followed by every row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write %s header: %w", t.Name(), err)
	}
	for i := 0; i < t.Len(); i++ {
		if err := cw.Write(t.Row(i)); err != nil {
			return fmt.Errorf("write %s row %d: %w", t.Name(), i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
