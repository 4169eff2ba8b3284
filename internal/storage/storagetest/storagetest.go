// Package storagetest holds a conformance suite every storage backend runs
// against itself.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "insurance-dq/internal/errors"
	"insurance-dq/internal/storage"
	"insurance-dq/internal/table"
)

// Tables returns a run's worth of small tables. Suffix changes the data so
// two runs can be told apart.
func Tables(t *testing.T, suffix string) []*table.Table {
	t.Helper()
	pol := table.New("policies", []string{"policy_id", "agent_id", "written_premium", "status"})
	for _, r := range [][]string{
		{"P1" + suffix, "A1", "100.50", "Active"},
		{"P2" + suffix, "A2", "", "Lapsed"},
	} {
		if err := pol.AppendRow(r); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}
	ag := table.New("agents", []string{"agent_id", "agent_name"})
	for _, r := range [][]string{{"A1", "Ann" + suffix}, {"A2", "Bob"}, {"A3", "Cy"}} {
		if err := ag.AppendRow(r); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}
	empty := table.New("payments", []string{"payment_id", "policy_id", "amount"})
	return []*table.Table{pol, ag, empty}
}

// Run exercises Replace, Read and Manifest on a fresh repository.
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()
	ctx := context.Background()

	if _, err := repo.Manifest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Manifest on empty store: err=%v want ErrNotFound", err)
	}
	if _, err := repo.Read(ctx, "policies"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Read on empty store: err=%v want ErrNotFound", err)
	}

	first := Tables(t, "")
	m1 := storage.NewManifest("run-1", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), first)
	if err := repo.Replace(ctx, m1, first); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	for _, want := range first {
		got, err := repo.Read(ctx, want.Name())
		if err != nil {
			t.Fatalf("Read %s: %v", want.Name(), err)
		}
		if !got.Equal(want) {
			t.Fatalf("Read %s = %v rows %v cols; want %d rows %v", want.Name(), got.Len(), got.Columns(), want.Len(), want.Columns())
		}
	}
	gotM, err := repo.Manifest(ctx)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if gotM.RunID != "run-1" || gotM.Fingerprint() != m1.Fingerprint() {
		t.Fatalf("Manifest = %+v; want %+v", gotM, m1)
	}

	// A second run overwrites every table.
	second := Tables(t, "b")
	m2 := storage.NewManifest("run-2", time.Date(2025, 1, 3, 3, 4, 5, 0, time.UTC), second)
	if err := repo.Replace(ctx, m2, second); err != nil {
		t.Fatalf("Replace second: %v", err)
	}
	pol, err := repo.Read(ctx, "policies")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !pol.Equal(second[0]) {
		t.Fatalf("policies not overwritten: %v", pol.Row(0))
	}
	if gotM, _ := repo.Manifest(ctx); gotM.RunID != "run-2" {
		t.Fatalf("manifest run=%q want run-2", gotM.RunID)
	}

	// A failed run leaves the previous one readable.
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	third := Tables(t, "c")
	err = repo.Replace(canceled, storage.NewManifest("run-3", time.Now(), third), third)
	var pe *apperrors.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Replace with canceled ctx: err=%v want PersistenceError", err)
	}
	pol, err = repo.Read(ctx, "policies")
	if err != nil {
		t.Fatalf("Read after failed run: %v", err)
	}
	if !pol.Equal(second[0]) {
		t.Fatalf("failed run leaked data: %v", pol.Row(0))
	}
	if gotM, _ := repo.Manifest(ctx); gotM.RunID != "run-2" {
		t.Fatalf("manifest run=%q after failed run; want run-2", gotM.RunID)
	}
}
