// Package report turns rule-engine findings into the summary table and
// writes it as a flat file.
package report

import (
	"log/slog"
	"strconv"

	"insurance-dq/internal/dq"
	"insurance-dq/internal/table"
)

// TableName is the name of the summary table.
const TableName = "dq_summary"

// Columns are the report columns, in order.
var Columns = []string{"dataset", "check", "failed_rows", "total_rows"}

// Summarize returns one row per finding, in evaluation order. Nothing is
// filtered, including findings with zero failed rows.
func Summarize(findings []dq.Finding) *table.Table {
	t := table.New(TableName, Columns)
	for _, f := range findings {
		// widths always match Columns
		_ = t.AppendRow([]string{
			f.Dataset,
			f.Check,
			strconv.Itoa(f.FailedRows),
			strconv.Itoa(f.TotalRows),
		})
	}
	return t
}

// Log writes one line per report row.
func Log(log *slog.Logger, t *table.Table) {
	for i := 0; i < t.Len(); i++ {
		log.Info("dq finding",
			"dataset", t.Value("dataset", i),
			"check", t.Value("check", i),
			"failed_rows", t.Value("failed_rows", i),
			"total_rows", t.Value("total_rows", i),
		)
	}
}
