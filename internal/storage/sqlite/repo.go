// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc driver. Staging tables are swapped in
// with ALTER TABLE ... RENAME inside one transaction; SQLite DDL is
// transactional, so readers see either the previous run or the new one.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"insurance-dq/internal/storage/sqldb"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite file path or URI, e.g. "dq.db" or
	// "file:dq.db?_pragma=busy_timeout(5000)".
	DSN       string
	BatchSize int
	Logger    *slog.Logger
}

// Repository is a SQLite-backed storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// NewRepository opens the database and returns a Repository plus a close
// function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection serializes writers and keeps per-connection pragmas.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000")

	r := &Repository{Repository: sqldb.New(db, Dialect{}, cfg.BatchSize, cfg.Logger)}
	return r, func() { _ = db.Close() }, nil
}

// Dialect is the SQLite flavour of sqldb.Dialect.
type Dialect struct{}

func (Dialect) Quote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
func (Dialect) Placeholder(int) string { return "?" }
func (Dialect) TextType() string       { return "TEXT" }

// MaxParams stays under the historical SQLITE_MAX_VARIABLE_NUMBER of 999.
func (Dialect) MaxParams() int { return 999 }

func (Dialect) TableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: table exists: %w", err)
	}
	return n > 0, nil
}

func (d Dialect) Swap(ctx context.Context, db *sql.DB, pairs []sqldb.Pair) error {
	return sqldb.SwapInTx(ctx, db, d, pairs, func(staging, target string) string {
		return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.Quote(staging), d.Quote(target))
	})
}
