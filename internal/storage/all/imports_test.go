package all

import (
	"testing"

	"insurance-dq/internal/storage"
)

func TestAllKindsRegistered(t *testing.T) {
	have := map[string]bool{}
	for _, k := range storage.ListKinds() {
		have[k] = true
	}
	for _, k := range []string{"parquet", "sqlite", "postgres", "mssql", "mysql"} {
		if !have[k] {
			t.Fatalf("kind %q not registered; have %v", k, storage.ListKinds())
		}
	}
}
