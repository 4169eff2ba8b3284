package dashboard

import (
	"io"
	"time"

	"insurance-dq/internal/table"
)

// ExportName returns the download name of a CSV export taken at now.
func ExportName(now time.Time) string {
	return "insurance_data_" + now.Format("20060102_150405") + ".csv"
}

// Export writes the filtered detail rows as CSV with a header row.
func Export(w io.Writer, s *Snapshot, f Filter) error {
	return table.WriteCSV(w, Detail(Apply(s.Rows, f), s.Columns))
}
