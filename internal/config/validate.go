package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"insurance-dq/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Pipeline. Path is a
// dotted path into the config, e.g. "storage.dsn".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// KnownStorageKinds lists the backends shipped with the pipeline.
var KnownStorageKinds = []string{"mssql", "mysql", "parquet", "postgres", "sqlite"}

var sqlKinds = map[string]bool{"mssql": true, "mysql": true, "postgres": true, "sqlite": true}

var (
	validateOnce sync.Once
	structValid  *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		structValid = v
	})
	return structValid
}

// ValidatePipeline performs static validation of a Pipeline. It does not
// mutate p. Struct tag violations and semantic checks land in the same list.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	issues = append(issues, validateStruct(p)...)
	issues = append(issues, validateInput(p.Input)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateReport(p.Report)...)
	if p.Runtime.BatchSize == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  "batch_size=0; the backend default is used",
		})
	}
	return issues
}

func validateStruct(p Pipeline) []Issue {
	err := structValidator().Struct(p)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return []Issue{{Severity: SeverityError, Path: "", Message: err.Error()}}
	}
	issues := make([]Issue, 0, len(ves))
	for _, fe := range ves {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     issuePath(fe.Namespace()),
			Message:  fieldMessage(fe),
		})
	}
	return issues
}

// issuePath drops the root type name from a validator namespace.
func issuePath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " must not be empty"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	case "datetime":
		return fmt.Sprintf("%s must be a date in layout %s, got %q", fe.Field(), fe.Param(), fe.Value())
	case "gte", "lte":
		return fmt.Sprintf("%s=%v violates %s=%s", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
}

func validateInput(in Input) []Issue {
	var issues []Issue

	known := schema.ByName(schema.Insurance())
	for ds := range in.Files {
		if _, ok := known[ds]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "input.files." + ds,
				Message:  fmt.Sprintf("unknown dataset %q; the file will not be loaded", ds),
			})
		}
	}
	for ds := range in.HeaderMap {
		if _, ok := known[ds]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "input.header_map." + ds,
				Message:  fmt.Sprintf("unknown dataset %q; the mapping is ignored", ds),
			})
		}
	}

	switch d := in.Delimiter; {
	case d == "", d == `\t`, d == "tab":
	case utf8.RuneCountInString(d) != 1:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "input.delimiter",
			Message:  fmt.Sprintf("delimiter must be a single character, got %q", d),
		})
	case d == `"` || d == "\n" || d == "\r":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "input.delimiter",
			Message:  fmt.Sprintf("delimiter %q is not allowed", d),
		})
	}

	ref := time.Date(2019, time.November, 23, 13, 45, 7, 0, time.UTC)
	for i, l := range in.DateLayouts {
		if _, err := time.Parse(l, ref.Format(l)); err != nil || l == ref.Format(l) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("input.date_layouts[%d]", i),
				Message:  fmt.Sprintf("%q is not a Go time layout", l),
			})
		}
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Kind) == "" {
		// reported by the struct validator
		return nil
	}

	known := false
	for _, k := range KnownStorageKinds {
		if k == s.Kind {
			known = true
			break
		}
	}
	if !known {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if sqlKinds[s.Kind] && strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  fmt.Sprintf("storage kind %q requires a dsn", s.Kind),
		})
	}
	if s.Kind == "parquet" && strings.TrimSpace(s.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dir",
			Message:  "storage kind \"parquet\" requires a dir",
		})
	}
	return issues
}

func validateReport(r Report) []Issue {
	if r.Path == "" || r.Format == "" {
		return nil
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(r.Path), "."))
	if ext != "" && ext != r.Format {
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "report.format",
			Message:  fmt.Sprintf("format %q does not match the %q extension of %s", r.Format, ext, r.Path),
		}}
	}
	return nil
}
