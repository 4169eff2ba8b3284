package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"insurance-dq/internal/config"
	apperrors "insurance-dq/internal/errors"
	"insurance-dq/internal/storage"
	"insurance-dq/internal/table"
)

var inputs = map[string]string{
	"policies.csv": "policy_id,agent_id,inception_date,expiration_date,line_of_business,status,written_premium\n" +
		"P1,A1,2024-01-01,2025-01-01,Auto,Active,100.50\n" +
		"P1,A1,2024-02-01,2025-02-01,Auto,Active,90\n" +
		"P2,A9,2024-03-01,2025-03-01,Home,Lapsed,10\n" +
		"P3,A2,2030-01-01,2020-01-01,Home,Active,-5\n" +
		"P4,A2,not-a-date,2025-01-01,Auto,Active,\n",
	"endorsements.csv": "endorsement_id,policy_id,effective_date\n" +
		"E1,P1,2024-05-01\n" +
		"E2,P999,2024-05-01\n",
	"payments.csv": "payment_id,policy_id,payment_date,amount\n" +
		"Y1,P1,2024-01-15,50\n" +
		"Y2,P999,2024-01-15,50\n" +
		"Y3,P2,2099-01-15,-1\n",
	"agents.csv": "agent_id,agent_name\n" +
		"A1,Ann\n" +
		"A2,Bob\n",
}

func writeInputs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// seams pins the clock and run id for the duration of a test.
func seams(t *testing.T) {
	t.Helper()
	origNow, origID, origRepo := nowFn, newRunIDFn, newRepositoryFn
	t.Cleanup(func() { nowFn, newRunIDFn, newRepositoryFn = origNow, origID, origRepo })
	nowFn = func() time.Time { return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC) }
	newRunIDFn = func() string { return "run-test" }
}

func pipelineFor(t *testing.T, in string, st config.Storage) config.Pipeline {
	t.Helper()
	p := config.Default()
	p.Job = "test"
	p.Input.Dir = in
	p.Storage = st
	p.Report.Path = filepath.Join(t.TempDir(), "out", "dq_report.csv")
	return p
}

func ids(t *testing.T, tb *table.Table, col string) []string {
	t.Helper()
	vals, ok := tb.Column(col)
	if !ok {
		t.Fatalf("table %s lacks %s", tb.Name(), col)
	}
	return vals
}

func checkPersisted(t *testing.T, src storage.Source) {
	t.Helper()
	ctx := context.Background()
	m, err := src.Manifest(ctx)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if m.RunID != "run-test" || len(m.Tables) != 4 {
		t.Fatalf("manifest = %+v", m)
	}

	want := map[string][]string{
		"policies":     {"P1"},
		"endorsements": {"E1"},
		"payments":     {"Y1"},
		"agents":       {"A1", "A2"},
	}
	keys := map[string]string{"policies": "policy_id", "endorsements": "endorsement_id", "payments": "payment_id", "agents": "agent_id"}
	for name, wantIDs := range want {
		tb, err := src.Read(ctx, name)
		if err != nil {
			t.Fatalf("Read(%s): %v", name, err)
		}
		got := ids(t, tb, keys[name])
		if strings.Join(got, ",") != strings.Join(wantIDs, ",") {
			t.Fatalf("%s keys = %v; want %v", name, got, wantIDs)
		}
	}
}

func TestRunPipelineSQLite(t *testing.T) {
	seams(t)
	in := writeInputs(t, inputs)
	p := pipelineFor(t, in, config.Storage{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "dq.db")})

	out, err := runPipeline(context.Background(), p, quietLogger())
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}
	if len(out.Findings) != 14 {
		t.Fatalf("findings = %d; want 14", len(out.Findings))
	}

	b, err := os.ReadFile(out.Report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 15 || lines[0] != "dataset,check,failed_rows,total_rows" {
		t.Fatalf("report = %q", string(b))
	}
	if lines[1] != "policies,Unique policy_id,1,5" {
		t.Fatalf("first report row = %q", lines[1])
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: p.Storage.DSN})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer repo.Close()
	checkPersisted(t, repo)
}

func TestRunPipelineParquet(t *testing.T) {
	seams(t)
	in := writeInputs(t, inputs)
	p := pipelineFor(t, in, config.Storage{Kind: "parquet", Dir: filepath.Join(t.TempDir(), "warehouse")})
	p.Report.Path = strings.TrimSuffix(p.Report.Path, ".csv") + ".xlsx"
	p.Report.Format = "xlsx"

	out, err := runPipeline(context.Background(), p, quietLogger())
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}
	if fi, err := os.Stat(out.Report); err != nil || fi.Size() == 0 {
		t.Fatalf("xlsx report missing: %v", err)
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "parquet", Dir: p.Storage.Dir})
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer repo.Close()
	checkPersisted(t, repo)
}

func TestRunPipelineIsIdempotentAcrossRuns(t *testing.T) {
	seams(t)
	in := writeInputs(t, inputs)
	p := pipelineFor(t, in, config.Storage{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "dq.db")})

	for i := 0; i < 2; i++ {
		if _, err := runPipeline(context.Background(), p, quietLogger()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: p.Storage.DSN})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer repo.Close()
	checkPersisted(t, repo)
}

type failingRepo struct{ closed bool }

func (f *failingRepo) Replace(context.Context, storage.Manifest, []*table.Table) error {
	return &apperrors.PersistenceError{Target: "tables", Op: "swap", Cause: errors.New("disk full")}
}
func (f *failingRepo) Read(context.Context, string) (*table.Table, error) {
	return nil, storage.ErrNotFound
}
func (f *failingRepo) Manifest(context.Context) (storage.Manifest, error) {
	return storage.Manifest{}, storage.ErrNotFound
}
func (f *failingRepo) Close() { f.closed = true }

func TestRunPipelinePersistFailureDiscardsReport(t *testing.T) {
	seams(t)
	repo := &failingRepo{}
	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) { return repo, nil }

	in := writeInputs(t, inputs)
	p := pipelineFor(t, in, config.Storage{Kind: "parquet", Dir: t.TempDir()})
	if err := os.MkdirAll(filepath.Dir(p.Report.Path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.Report.Path, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := runPipeline(context.Background(), p, quietLogger())
	var pe *apperrors.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v; want PersistenceError", err)
	}
	if !repo.closed {
		t.Fatal("repository not closed")
	}
	b, _ := os.ReadFile(p.Report.Path)
	if string(b) != "previous" {
		t.Fatalf("report = %q; want the previous report untouched", string(b))
	}
	entries, _ := os.ReadDir(filepath.Dir(p.Report.Path))
	if len(entries) != 1 {
		t.Fatalf("report dir holds %d entries; want only the previous report", len(entries))
	}
}

func TestRunPipelineOpenFailure(t *testing.T) {
	seams(t)
	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) {
		return nil, errors.New("connection refused")
	}
	p := pipelineFor(t, writeInputs(t, inputs), config.Storage{Kind: "postgres", DSN: "postgres://nowhere"})

	_, err := runPipeline(context.Background(), p, quietLogger())
	var pe *apperrors.PersistenceError
	if !errors.As(err, &pe) || pe.Op != "open" {
		t.Fatalf("err = %v; want PersistenceError op=open", err)
	}
	if _, err := os.Stat(p.Report.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("report written despite failure: %v", err)
	}
}

func TestRunPipelineFatalInputErrors(t *testing.T) {
	missing := map[string]string{}
	for k, v := range inputs {
		if k != "agents.csv" {
			missing[k] = v
		}
	}
	noStatus := map[string]string{}
	for k, v := range inputs {
		noStatus[k] = v
	}
	noStatus["policies.csv"] = "policy_id,agent_id,inception_date,expiration_date,line_of_business\nP1,A1,2024-01-01,2025-01-01,Auto\n"

	tests := []struct {
		name  string
		files map[string]string
		kind  string
	}{
		{"missing file", missing, "missing_input"},
		{"missing column", noStatus, "schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seams(t)
			called := false
			newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) {
				called = true
				return &failingRepo{}, nil
			}
			p := pipelineFor(t, writeInputs(t, tt.files), config.Storage{Kind: "parquet", Dir: t.TempDir()})

			_, err := runPipeline(context.Background(), p, quietLogger())
			if got := apperrors.Kind(err); got != tt.kind {
				t.Fatalf("Kind(%v) = %q; want %q", err, got, tt.kind)
			}
			if called {
				t.Fatal("storage opened after a fatal input error")
			}
			if _, err := os.Stat(p.Report.Path); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("report written after a fatal input error: %v", err)
			}
		})
	}
}

func TestContractsForAppliesHeaderMap(t *testing.T) {
	p := config.Default()
	p.Input.HeaderMap = map[string]map[string]string{"agents": {"Agent Code": "agent_id"}}
	for _, c := range contractsFor(p) {
		if c.Name == "agents" && c.HeaderMap["Agent Code"] != "agent_id" {
			t.Fatalf("agents header map = %v", c.HeaderMap)
		}
		if c.Name != "agents" && len(c.HeaderMap) != 0 {
			t.Fatalf("%s header map = %v; want none", c.Name, c.HeaderMap)
		}
	}
}
