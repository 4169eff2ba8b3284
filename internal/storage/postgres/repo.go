// Package postgres implements a Postgres storage.Repository using pgx v5.
// A whole run is written in one transaction: every table is COPYed into a
// staging table, the targets are dropped and the staging tables renamed.
// Postgres DDL is transactional, so readers never see a partial run.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "insurance-dq/internal/errors"
	"insurance-dq/internal/storage"
	"insurance-dq/internal/table"
)

const stagingSuffix = "__staging"

// Config holds Postgres repository configuration.
type Config struct {
	DSN       string // connection string for pgxpool
	BatchSize int
	Logger    *slog.Logger
}

// Repository is a Postgres-backed storage.Repository.
type Repository struct {
	pool      *pgxpool.Pool
	batchSize int
	log       *slog.Logger
}

// NewRepository constructs a Repository and returns a close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = storage.DefaultBatchSize
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Repository{pool: pool, batchSize: bs, log: log}, pool.Close, nil
}

// Replace implements storage.Sink.
func (r *Repository) Replace(ctx context.Context, m storage.Manifest, tables []*table.Table) error {
	all := append(append([]*table.Table{}, tables...), storage.ManifestToTable(m))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return &apperrors.PersistenceError{Target: "tables", Op: "begin", Cause: err}
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(context.Background()) }()

	for _, t := range all {
		if err := r.stage(ctx, tx, t); err != nil {
			return &apperrors.PersistenceError{Target: t.Name(), Op: "stage", Cause: pgDetail(err)}
		}
	}
	for _, t := range all {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgIdent(t.Name())); err != nil {
			return &apperrors.PersistenceError{Target: t.Name(), Op: "swap", Cause: pgDetail(err)}
		}
		rename := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", pgIdent(t.Name()+stagingSuffix), pgIdent(t.Name()))
		if _, err := tx.Exec(ctx, rename); err != nil {
			return &apperrors.PersistenceError{Target: t.Name(), Op: "swap", Cause: pgDetail(err)}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return &apperrors.PersistenceError{Target: "tables", Op: "commit", Cause: pgDetail(err)}
	}
	return nil
}

func (r *Repository) stage(ctx context.Context, tx pgx.Tx, t *table.Table) error {
	staging := t.Name() + stagingSuffix
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgIdent(staging)); err != nil {
		return fmt.Errorf("drop stale staging: %w", err)
	}
	if _, err := tx.Exec(ctx, CreateTableSQL(staging, t.Columns())); err != nil {
		return fmt.Errorf("create staging: %w", err)
	}
	n, err := storage.LoadBatches(ctx, r.log, t, r.batchSize,
		func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
			return tx.CopyFrom(ctx, pgx.Identifier{staging}, cols, pgx.CopyFromRows(rows))
		})
	if err != nil {
		return fmt.Errorf("copy into staging: %w", err)
	}
	r.log.Debug("staged table", "table", t.Name(), "rows", n)
	return nil
}

// Read implements storage.Source.
func (r *Repository) Read(ctx context.Context, name string) (*table.Table, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", pgIdent(name)).Scan(&exists); err != nil {
		return nil, fmt.Errorf("postgres: table exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("table %s: %w", name, storage.ErrNotFound)
	}

	rows, err := r.pool.Query(ctx, "SELECT * FROM "+pgIdent(name))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}
	t := table.New(name, cols)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		row := make([]string, len(vals))
		for i, v := range vals {
			row[i] = toString(v)
		}
		if err := t.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return t, rows.Err()
}

// Manifest implements storage.Source.
func (r *Repository) Manifest(ctx context.Context) (storage.Manifest, error) {
	t, err := r.Read(ctx, storage.ManifestTable)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Manifest{}, storage.ErrNotFound
		}
		return storage.Manifest{}, err
	}
	return storage.ManifestFromTable(t)
}

// CreateTableSQL builds a CREATE TABLE with one nullable text column per name.
func CreateTableSQL(name string, cols []string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgIdent(c) + " text NULL"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", pgIdent(name), strings.Join(defs, ", "))
}

// pgDetail surfaces the server's detail and SQLSTATE when present.
func pgDetail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s: %s)", err, pgErr.SQLState(), pgErr.Detail)
	}
	return err
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// toString converts values to their string representation; NULL becomes "".
func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
