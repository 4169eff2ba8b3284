package dq

import (
	apperrors "insurance-dq/internal/errors"
	"insurance-dq/internal/table"
)

// Finding is the immutable outcome of one check against one table.
type Finding struct {
	Dataset    string `json:"dataset"`
	Check      string `json:"check"`
	FailedRows int    `json:"failed_rows"`
	TotalRows  int    `json:"total_rows"`
}

// Plan splits checks into those that can run against ds and optional checks
// skipped for an absent column. A required check whose dataset or column is
// absent yields a SchemaError (a dataset absent from ds yields a
// MissingInputError).
func Plan(checks []Check, ds *table.Set) (run, skipped []Check, err error) {
	for _, c := range checks {
		t, ok := ds.Get(c.Dataset)
		if !ok {
			return nil, nil, &apperrors.MissingInputError{Dataset: c.Dataset}
		}
		missing := t.Missing(c.Columns...)
		switch {
		case len(missing) == 0:
			run = append(run, c)
		case c.Optional:
			skipped = append(skipped, c)
		default:
			return nil, nil, &apperrors.SchemaError{Dataset: c.Dataset, Columns: missing, Check: c.Name}
		}
	}
	return run, skipped, nil
}

// Engine evaluates a fixed catalog of checks.
type Engine struct {
	checks []Check
}

// NewEngine returns an engine over checks, evaluated in the given order.
func NewEngine(checks []Check) *Engine {
	return &Engine{checks: checks}
}

// Result is the output of one evaluation.
type Result struct {
	// Findings holds one entry per executed check, in catalog order.
	Findings []Finding
	// Skipped lists optional checks not executed because a column is absent.
	Skipped []Check
}

// Evaluate runs every applicable check against the unmodified tables. Rule
// failures are data; only schema problems are returned as errors, and in that
// case no check has run.
func (e *Engine) Evaluate(ds *table.Set) (Result, error) {
	run, skipped, err := Plan(e.checks, ds)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Findings: make([]Finding, 0, len(run)),
		Skipped:  skipped,
	}
	for _, c := range run {
		t, _ := ds.Get(c.Dataset)
		res.Findings = append(res.Findings, Finding{
			Dataset:    c.Dataset,
			Check:      c.Name,
			FailedRows: c.Count(t),
			TotalRows:  t.Len(),
		})
	}
	return res, nil
}
