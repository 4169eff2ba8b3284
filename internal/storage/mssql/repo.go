// Package mssql implements a Microsoft SQL Server storage.Repository. Rows
// reach the staging tables through the go-mssqldb bulk copy API; the swap
// uses DROP TABLE and sp_rename inside one transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"insurance-dq/internal/storage/sqldb"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN       string
	BatchSize int
	Logger    *slog.Logger
}

// Repository is an MSSQL-backed storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// NewRepository validates the DSN, opens a pool and pings it.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
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

// Dialect is the SQL Server flavour of sqldb.Dialect.
type Dialect struct{}

// Quote brackets an identifier, escaping ].
func (Dialect) Quote(id string) string   { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }
func (Dialect) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }
func (Dialect) TextType() string         { return "NVARCHAR(MAX)" }

// MaxParams stays under the 2100 parameter limit of an RPC call.
func (Dialect) MaxParams() int { return 2000 }

func (Dialect) nstring(s string) string { return "N'" + strings.ReplaceAll(s, "'", "''") + "'" }

func (Dialect) TableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT CASE WHEN OBJECT_ID(@p1, 'U') IS NULL THEN 0 ELSE 1 END", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("mssql: table exists: %w", err)
	}
	return n == 1, nil
}

func (d Dialect) Swap(ctx context.Context, db *sql.DB, pairs []sqldb.Pair) error {
	return sqldb.SwapInTx(ctx, db, d, pairs, func(staging, target string) string {
		return RenameSQL(staging, target)
	})
}

// RenameSQL renames staging to target. sp_rename takes the new name
// unquoted.
func RenameSQL(staging, target string) string {
	d := Dialect{}
	return fmt.Sprintf("EXEC sp_rename %s, %s", d.nstring(d.Quote(staging)), d.nstring(target))
}

// BulkInsert copies rows into name with mssql.CopyIn inside one
// transaction.
func (Dialect) BulkInsert(ctx context.Context, db *sql.DB, name string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(name, mssql.BulkOptions{}, columns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

var _ sqldb.BulkInserter = Dialect{}
