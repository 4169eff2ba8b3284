package parquet

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"insurance-dq/internal/storage"
	"insurance-dq/internal/storage/storagetest"
)

func openTemp(t *testing.T) (*Repository, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewRepository(context.Background(), Config{Dir: dir, BatchSize: 1})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	return r, dir
}

func TestConformance(t *testing.T) {
	r, _ := openTemp(t)
	storagetest.Run(t, r)
}

func TestColumnOrderPreserved(t *testing.T) {
	r, _ := openTemp(t)
	ctx := context.Background()
	tables := storagetest.Tables(t, "")
	if err := r.Replace(ctx, storage.NewManifest("r1", time.Now(), tables), tables); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, err := r.Read(ctx, "policies")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	// policy_id sorts after agent_id; the file must still return table order
	if cols := got.Columns(); cols[0] != "policy_id" || cols[1] != "agent_id" {
		t.Fatalf("columns=%v", cols)
	}
	if got.Value("written_premium", 1) != "" {
		t.Fatalf("null cell came back as %q", got.Value("written_premium", 1))
	}
}

func TestPruneKeepsCurrentAndPrevious(t *testing.T) {
	r, dir := openTemp(t)
	ctx := context.Background()
	for _, id := range []string{"r1", "r2", "r3"} {
		tables := storagetest.Tables(t, id)
		if err := r.Replace(ctx, storage.NewManifest(id, time.Now(), tables), tables); err != nil {
			t.Fatalf("Replace %s: %v", id, err)
		}
	}
	entries, err := os.ReadDir(filepath.Join(dir, runsDir))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	if len(names) != 2 || !names["r2"] || !names["r3"] {
		t.Fatalf("runs left=%v want r2,r3", names)
	}
	link, err := os.Readlink(filepath.Join(dir, currentLink))
	if err != nil || filepath.Base(link) != "r3" {
		t.Fatalf("current=%q err=%v", link, err)
	}
}

func TestFailedRunRemovesStagedDir(t *testing.T) {
	r, dir := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tables := storagetest.Tables(t, "")
	if err := r.Replace(ctx, storage.NewManifest("dead", time.Now(), tables), tables); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := os.Stat(filepath.Join(dir, runsDir, "dead")); !os.IsNotExist(err) {
		t.Fatalf("staged run left behind: %v", err)
	}
}

func TestFactoryRegistered(t *testing.T) {
	repo, err := storage.New(context.Background(), storage.Config{Kind: "parquet", Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	repo.Close()
	if _, err := storage.New(context.Background(), storage.Config{Kind: "parquet"}); err == nil {
		t.Fatalf("expected error without dir")
	}
}
