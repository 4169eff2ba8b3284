// Package mysql implements a MySQL-backed storage.Repository. MySQL DDL is
// not transactional, so staging tables are swapped with one multi-table
// RENAME TABLE statement, which the server applies atomically.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-sql-driver/mysql"

	"insurance-dq/internal/storage/sqldb"
)

// oldSuffix names the previous generation of a table during a swap.
const oldSuffix = "__old"

// Config holds MySQL repository configuration.
type Config struct {
	DSN       string
	BatchSize int
	Logger    *slog.Logger
}

// Repository is a MySQL-backed storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// NewRepository validates the DSN, opens a pool and pings it.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	r := &Repository{Repository: sqldb.New(db, Dialect{}, cfg.BatchSize, cfg.Logger)}
	return r, func() { _ = db.Close() }, nil
}

// Dialect is the MySQL flavour of sqldb.Dialect.
type Dialect struct{}

func (Dialect) Quote(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
func (Dialect) Placeholder(int) string { return "?" }
func (Dialect) TextType() string       { return "LONGTEXT" }
func (Dialect) MaxParams() int         { return 65535 }

func (Dialect) TableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
		name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("mysql: table exists: %w", err)
	}
	return n > 0, nil
}

// Swap moves every existing target aside and every staging table into
// place with a single RENAME TABLE, then drops the previous generation.
func (d Dialect) Swap(ctx context.Context, db *sql.DB, pairs []sqldb.Pair) error {
	var olds []string
	for _, p := range pairs {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+d.Quote(p.Target+oldSuffix)); err != nil {
			return fmt.Errorf("drop stale %s: %w", p.Target+oldSuffix, err)
		}
	}
	clauses := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		exists, err := d.TableExists(ctx, db, p.Target)
		if err != nil {
			return err
		}
		if exists {
			clauses = append(clauses, d.Quote(p.Target)+" TO "+d.Quote(p.Target+oldSuffix))
			olds = append(olds, p.Target+oldSuffix)
		}
		clauses = append(clauses, d.Quote(p.Staging)+" TO "+d.Quote(p.Target))
	}
	if _, err := db.ExecContext(ctx, RenameSQL(clauses)); err != nil {
		return fmt.Errorf("rename tables: %w", err)
	}
	for _, o := range olds {
		// The swap already happened; a leftover __old table is dropped next run.
		_, _ = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+d.Quote(o))
	}
	return nil
}

// RenameSQL joins rename clauses into one statement.
func RenameSQL(clauses []string) string {
	return "RENAME TABLE " + strings.Join(clauses, ", ")
}
