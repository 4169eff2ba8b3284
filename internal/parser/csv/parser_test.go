package csv_test

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	pcsv "insurance-dq/internal/parser/csv"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestParseNormalizesHeaders(t *testing.T) {
	in := "\uFEFFPolicy ID,Agent-ID, Inception Date ,Líne of Business\nP1,A1,2024-01-01,Auto\n"
	res, err := pcsv.NewParser(pcsv.Options{Logger: quiet()}).Parse(strings.NewReader(in), "policies")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"policy_id", "agent_id", "inception_date", "line_of_business"}
	got := res.Table.Columns()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("columns=%v want %v", got, want)
	}
	if v := res.Table.Value("agent_id", 0); v != "A1" {
		t.Fatalf("agent_id=%q want A1", v)
	}
}

func TestParseHeaderMap(t *testing.T) {
	in := "PolNo,Premium\nP1,10\n"
	p := pcsv.NewParser(pcsv.Options{
		Logger:    quiet(),
		HeaderMap: map[string]string{"PolNo": "policy_id", "premium": "written_premium"},
	})
	res, err := p.Parse(strings.NewReader(in), "policies")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !res.Table.Has("policy_id") || !res.Table.Has("written_premium") {
		t.Fatalf("columns=%v", res.Table.Columns())
	}
}

func TestParseSkipsWrongWidth(t *testing.T) {
	in := "a,b\n1,2\n3\n4,5,6\n7,8\n"
	res, err := pcsv.NewParser(pcsv.Options{Logger: quiet()}).Parse(strings.NewReader(in), "x")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Table.Len() != 2 || res.Skipped != 2 {
		t.Fatalf("rows=%d skipped=%d want 2/2", res.Table.Len(), res.Skipped)
	}
	if v := res.Table.Value("a", 1); v != "7" {
		t.Fatalf("a[1]=%q want 7", v)
	}
}

func TestParseDelimiterAndTrim(t *testing.T) {
	in := "a;b\n 1 ; x \n"
	res, err := pcsv.NewParser(pcsv.Options{Comma: ';', TrimSpace: true, Logger: quiet()}).
		Parse(strings.NewReader(in), "x")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Table.Value("a", 0) != "1" || res.Table.Value("b", 0) != "x" {
		t.Fatalf("row=%v", res.Table.Row(0))
	}
}

func TestParseHeaderOnlyAndEmpty(t *testing.T) {
	res, err := pcsv.NewParser(pcsv.Options{Logger: quiet()}).Parse(strings.NewReader("a,b\n"), "x")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Table.Len() != 0 || len(res.Table.Columns()) != 2 {
		t.Fatalf("want empty table with 2 columns, got %d rows %v", res.Table.Len(), res.Table.Columns())
	}
	if _, err := pcsv.NewParser(pcsv.Options{}).Parse(strings.NewReader(""), "x"); err == nil {
		t.Fatalf("expected error for input without header")
	}
}

func TestParseDuplicateHeaderKeepsFirst(t *testing.T) {
	in := "id,ID,name\n1,2,n\n"
	res, err := pcsv.NewParser(pcsv.Options{Logger: quiet()}).Parse(strings.NewReader(in), "x")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := res.Table.Columns(); len(got) != 2 {
		t.Fatalf("columns=%v", got)
	}
	if res.Table.Value("id", 0) != "1" || res.Table.Value("name", 0) != "n" {
		t.Fatalf("row=%v", res.Table.Row(0))
	}
}

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"Policy ID":         "policy_id",
		"  written.premium": "written_premium",
		"Datum od":          "datum_od",
		"Pojišťovna":        "pojistovna",
		"--":                "",
		"a  -  b":           "a_b",
	}
	for in, want := range cases {
		if got := pcsv.NormalizeHeader(in); got != want {
			t.Errorf("NormalizeHeader(%q)=%q want %q", in, got, want)
		}
	}
}
