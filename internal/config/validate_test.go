package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func TestValidatePipeline_DefaultIsClean(t *testing.T) {
	if issues := ValidatePipeline(Default()); len(issues) != 0 {
		t.Fatalf("Default() issues = %+v; want none", issues)
	}
}

func TestValidatePipeline(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Pipeline)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"missing job", func(p *Pipeline) { p.Job = "" }, SeverityError, "job", "must not be empty"},
		{"missing input dir", func(p *Pipeline) { p.Input.Dir = "" }, SeverityError, "input.dir", "must not be empty"},
		{"bad report format", func(p *Pipeline) { p.Report.Format = "pdf" }, SeverityError, "report.format", "one of"},
		{"negative horizon", func(p *Pipeline) { p.Rules.HorizonYears = -1 }, SeverityError, "rules.horizon_years", "gte"},
		{"bad min date", func(p *Pipeline) { p.Rules.MinDate = "01/01/1900" }, SeverityError, "rules.min_date", "layout"},
		{"negative batch", func(p *Pipeline) { p.Runtime.BatchSize = -5 }, SeverityError, "runtime.batch_size", "gte"},
		{"zero batch", func(p *Pipeline) { p.Runtime.BatchSize = 0 }, SeverityWarning, "runtime.batch_size", "default"},
		{"sql without dsn", func(p *Pipeline) { p.Storage = Storage{Kind: "sqlite"} }, SeverityError, "storage.dsn", "requires a dsn"},
		{"parquet without dir", func(p *Pipeline) { p.Storage.Dir = "" }, SeverityError, "storage.dir", "requires a dir"},
		{"unknown kind", func(p *Pipeline) { p.Storage = Storage{Kind: "bigquery"} }, SeverityWarning, "storage.kind", "unknown storage kind"},
		{"long delimiter", func(p *Pipeline) { p.Input.Delimiter = ";;" }, SeverityError, "input.delimiter", "single character"},
		{"quote delimiter", func(p *Pipeline) { p.Input.Delimiter = `"` }, SeverityError, "input.delimiter", "not allowed"},
		{"bad layout", func(p *Pipeline) { p.Input.DateLayouts = []string{"2006-01-02", "yyyy-mm-dd"} }, SeverityError, "input.date_layouts[1]", "not a Go time layout"},
		{"unknown dataset file", func(p *Pipeline) { p.Input.Files = map[string]string{"claims": "c.csv"} }, SeverityWarning, "input.files.claims", "unknown dataset"},
		{"format mismatch", func(p *Pipeline) { p.Report.Path = "out/report.xlsx" }, SeverityWarning, "report.format", "does not match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tt.sev, tt.path, tt.msg) {
				t.Fatalf("want %s at %s containing %q; got %+v", tt.sev, tt.path, tt.msg, issues)
			}
		})
	}
}

func TestValidatePipeline_AcceptsKnownLayoutsAndDatasets(t *testing.T) {
	p := Default()
	p.Input.DateLayouts = []string{"2006-01-02", "01/02/2006", "02.01.2006"}
	p.Input.Files = map[string]string{"policies": "pol.csv", "agents": "agt.csv"}
	p.Input.Delimiter = `\t`
	if issues := ValidatePipeline(p); len(issues) != 0 {
		t.Fatalf("issues = %+v; want none", issues)
	}
}

func TestHasErrors(t *testing.T) {
	if HasErrors([]Issue{{Severity: SeverityWarning}}) {
		t.Fatal("warnings only: HasErrors = true")
	}
	if !HasErrors([]Issue{{Severity: SeverityWarning}, {Severity: SeverityError}}) {
		t.Fatal("HasErrors = false with an error present")
	}
}

func TestIssueError(t *testing.T) {
	got := Issue{Severity: SeverityError, Path: "job", Message: "job must not be empty"}.Error()
	if got != "error at job: job must not be empty" {
		t.Fatalf("Error() = %q", got)
	}
}
