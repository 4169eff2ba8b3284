// Package sqldb implements storage.Repository on top of database/sql for
// backends that differ only in dialect: identifier quoting, placeholders,
// bulk insert and how a staging table replaces its target.
//
// A Replace writes every table into "<name>__staging", then asks the dialect
// to swap all staging tables into place at once. The manifest is stored as
// one more table and swapped together with the data.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	apperrors "insurance-dq/internal/errors"
	"insurance-dq/internal/storage"
	"insurance-dq/internal/table"
)

// StagingSuffix is appended to a table name to form its staging table.
const StagingSuffix = "__staging"

// Pair is one staging table and the table it replaces.
type Pair struct {
	Staging string
	Target  string
}

// Dialect captures what differs between SQL backends.
type Dialect interface {
	// Quote returns a quoted identifier.
	Quote(ident string) string
	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder(n int) string
	// TextType is the column type used for every cell.
	TextType() string
	// MaxParams bounds the bind arguments of one statement.
	MaxParams() int
	// TableExists reports whether name exists.
	TableExists(ctx context.Context, db *sql.DB, name string) (bool, error)
	// Swap replaces every target with its staging table as one unit.
	Swap(ctx context.Context, db *sql.DB, pairs []Pair) error
}

// BulkInserter is implemented by dialects with a native bulk path.
type BulkInserter interface {
	BulkInsert(ctx context.Context, db *sql.DB, name string, columns []string, rows [][]any) (int64, error)
}

// Repository is a database/sql backed storage.Repository.
type Repository struct {
	db        *sql.DB
	d         Dialect
	batchSize int
	log       *slog.Logger
}

// New wraps an open database.
func New(db *sql.DB, d Dialect, batchSize int, log *slog.Logger) *Repository {
	if batchSize <= 0 {
		batchSize = storage.DefaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Repository{db: db, d: d, batchSize: batchSize, log: log}
}

// DB returns the underlying handle.
func (r *Repository) DB() *sql.DB { return r.db }

// Close closes the database handle.
func (r *Repository) Close() { _ = r.db.Close() }

// Replace implements storage.Sink.
func (r *Repository) Replace(ctx context.Context, m storage.Manifest, tables []*table.Table) error {
	all := append(append([]*table.Table{}, tables...), storage.ManifestToTable(m))

	pairs := make([]Pair, 0, len(all))
	for _, t := range all {
		p := Pair{Staging: t.Name() + StagingSuffix, Target: t.Name()}
		pairs = append(pairs, p)
		if err := r.stage(ctx, p.Staging, t); err != nil {
			r.dropStaging(pairs)
			return &apperrors.PersistenceError{Target: t.Name(), Op: "stage", Cause: err}
		}
		r.log.Debug("staged table", "table", t.Name(), "rows", t.Len())
	}
	if err := r.d.Swap(ctx, r.db, pairs); err != nil {
		r.dropStaging(pairs)
		return &apperrors.PersistenceError{Target: "tables", Op: "swap", Cause: err}
	}
	return nil
}

func (r *Repository) stage(ctx context.Context, name string, t *table.Table) error {
	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+r.d.Quote(name)); err != nil {
		return fmt.Errorf("drop stale staging: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, CreateTableSQL(r.d, name, t.Columns())); err != nil {
		return fmt.Errorf("create staging: %w", err)
	}

	copyFn := func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
		return r.insert(ctx, name, cols, rows)
	}
	if bi, ok := r.d.(BulkInserter); ok {
		copyFn = func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
			return bi.BulkInsert(ctx, r.db, name, cols, rows)
		}
	}
	n, err := storage.LoadBatches(ctx, r.log, t, r.batchSize, copyFn)
	if err != nil {
		return err
	}
	if n != int64(t.Len()) {
		return fmt.Errorf("inserted %d of %d rows", n, t.Len())
	}
	return nil
}

// insert runs multi-row INSERTs inside one transaction, splitting rows so a
// statement never exceeds MaxParams.
func (r *Repository) insert(ctx context.Context, name string, cols []string, rows [][]any) (int64, error) {
	per := r.d.MaxParams() / len(cols)
	if per < 1 {
		per = 1
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	var inserted int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		q, args := InsertSQL(r.d, name, cols, rows[start:end])
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("insert: %w", err)
		}
		inserted += int64(end - start)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *Repository) dropStaging(pairs []Pair) {
	// the run context may already be canceled
	ctx := context.Background()
	for _, p := range pairs {
		if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+r.d.Quote(p.Staging)); err != nil {
			r.log.Warn("drop staging table", "table", p.Staging, "err", err)
		}
	}
}

// Read implements storage.Source.
func (r *Repository) Read(ctx context.Context, name string) (*table.Table, error) {
	ok, err := r.d.TableExists(ctx, r.db, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("table %s: %w", name, storage.ErrNotFound)
	}
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM "+r.d.Quote(name))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := table.New(name, cols)
	vals := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = v.String
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

// CreateTableSQL builds a CREATE TABLE with one text column per name.
func CreateTableSQL(d Dialect, name string, cols []string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = d.Quote(c) + " " + d.TextType() + " NULL"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(name), strings.Join(defs, ", "))
}

// InsertSQL builds one multi-row INSERT and its flattened arguments.
func InsertSQL(d Dialect, name string, cols []string, rows [][]any) (string, []any) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.Quote(c)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", d.Quote(name), strings.Join(quoted, ", "))
	args := make([]any, 0, len(rows)*len(cols))
	n := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(n))
			n++
		}
		b.WriteByte(')')
		args = append(args, row...)
	}
	return b.String(), args
}

// SwapInTx replaces each target inside one transaction using rename, for
// engines with transactional DDL.
func SwapInTx(ctx context.Context, db *sql.DB, d Dialect, pairs []Pair, rename func(staging, target string) string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, p := range pairs {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+d.Quote(p.Target)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop %s: %w", p.Target, err)
		}
		if _, err := tx.ExecContext(ctx, rename(p.Staging, p.Target)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("rename %s: %w", p.Staging, err)
		}
	}
	return tx.Commit()
}
