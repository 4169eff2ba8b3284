package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"insurance-dq/internal/storage"
	"insurance-dq/internal/storage/sqldb"
	"insurance-dq/internal/storage/storagetest"
)

func openTemp(t *testing.T) *wrappedRepo {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "dq.db")
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn, BatchSize: 2})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	w := &wrappedRepo{Repository: r, closeFn: closeFn}
	t.Cleanup(w.Close)
	return w
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, openTemp(t))
}

func TestNoStagingTablesLeft(t *testing.T) {
	repo := openTemp(t)
	ctx := context.Background()
	tables := storagetest.Tables(t, "")
	if err := repo.Replace(ctx, storage.NewManifest("r", time.Now(), tables), tables); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	rows, err := repo.DB().QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if strings.HasSuffix(name, sqldb.StagingSuffix) {
			t.Fatalf("staging table %s left behind", name)
		}
	}
}

func TestNullRoundTrip(t *testing.T) {
	repo := openTemp(t)
	ctx := context.Background()
	tables := storagetest.Tables(t, "")
	if err := repo.Replace(ctx, storage.NewManifest("r", time.Now(), tables), tables); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	var isNull bool
	err := repo.DB().QueryRowContext(ctx,
		`SELECT written_premium IS NULL FROM policies WHERE policy_id = 'P2'`).Scan(&isNull)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !isNull {
		t.Fatalf("empty cell not stored as NULL")
	}
}

func TestNewRepositoryEmptyDSN(t *testing.T) {
	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestFactoryUsesHook(t *testing.T) {
	boom := errors.New("boom")
	old := newRepository
	t.Cleanup(func() { newRepository = old })
	var got Config
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return nil, nil, boom
	}
	_, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: "x.db", BatchSize: 7})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if got.DSN != "x.db" || got.BatchSize != 7 {
		t.Fatalf("factory passed %+v", got)
	}
}
