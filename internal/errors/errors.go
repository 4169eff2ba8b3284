// Package errors defines the fatal error taxonomy of a pipeline run.
//
// Rule failures are never errors: they are recorded as findings. The types
// below abort a run and always name the offending dataset, column or target
// so an operator can act on the message alone. All types support errors.As.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// MissingInputError reports a required input file or table that is absent
// at load time. It aborts the run before any check executes.
type MissingInputError struct {
	Dataset string
	Path    string
	Cause   error
}

func (e *MissingInputError) Error() string {
	msg := fmt.Sprintf("missing input for dataset %q", e.Dataset)
	if e.Path != "" {
		msg += fmt.Sprintf(" at %s", e.Path)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap allows errors.Is(err, fs.ErrNotExist).
func (e *MissingInputError) Unwrap() error { return e.Cause }

// SchemaError reports required columns absent from a loaded table. It aborts
// the run before anything is written.
type SchemaError struct {
	Dataset string
	Columns []string
	// Check is set when the missing column was detected while planning a
	// rule rather than at load time.
	Check string
}

func (e *SchemaError) Error() string {
	where := ""
	if e.Check != "" {
		where = fmt.Sprintf(" (required by check %q)", e.Check)
	}
	return fmt.Sprintf("dataset %q: missing required column(s) %s%s",
		e.Dataset, strings.Join(e.Columns, ", "), where)
}

// PersistenceError reports a failed write of sanitized tables or of the
// report. Staged output has been discarded when it is returned.
type PersistenceError struct {
	Target string // table name, file path or "manifest"
	Op     string // e.g. "stage", "swap", "commit"
	Cause  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %s: %v", e.Target, e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// IsFatal reports whether err belongs to the run-aborting taxonomy.
func IsFatal(err error) bool {
	var (
		mi *MissingInputError
		se *SchemaError
		pe *PersistenceError
	)
	return errors.As(err, &mi) || errors.As(err, &se) || errors.As(err, &pe)
}

// Kind returns a short label for metrics and logs.
func Kind(err error) string {
	var (
		mi *MissingInputError
		se *SchemaError
		pe *PersistenceError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &mi):
		return "missing_input"
	case errors.As(err, &se):
		return "schema"
	case errors.As(err, &pe):
		return "persistence"
	default:
		return "internal"
	}
}
