// Package parquet implements a file-backed storage.Repository that writes
// one Parquet file per table.
//
// Layout under the root directory:
//
//	runs/<run-id>/<table>.parquet
//	runs/<run-id>/_manifest.json
//	current -> runs/<run-id>
//
// A run is written into its own directory and published by atomically
// replacing the current symlink, so readers resolve either the previous run
// or the new one, never a mix.
package parquet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	pq "github.com/parquet-go/parquet-go"

	apperrors "insurance-dq/internal/errors"
	"insurance-dq/internal/storage"
	"insurance-dq/internal/table"
)

const (
	runsDir      = "runs"
	currentLink  = "current"
	manifestFile = "_manifest.json"
	// columnsKey stores the original column order; parquet groups sort
	// their fields by name.
	columnsKey = "dq.columns"
	// keepRuns is how many run directories survive pruning, the current
	// one included.
	keepRuns = 2
)

// Config holds the root directory and write batch size.
type Config struct {
	Dir       string
	BatchSize int
	Logger    *slog.Logger
}

// Repository is a Parquet directory store.
type Repository struct {
	root      string
	batchSize int
	log       *slog.Logger
}

// NewRepository creates the root directory if needed.
func NewRepository(_ context.Context, cfg Config) (*Repository, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("parquet: dir must not be empty")
	}
	if err := os.MkdirAll(filepath.Join(cfg.Dir, runsDir), 0o755); err != nil {
		return nil, fmt.Errorf("parquet: %w", err)
	}
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = storage.DefaultBatchSize
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Repository{root: cfg.Dir, batchSize: bs, log: log}, nil
}

// Close is a no-op; files are closed after every call.
func (r *Repository) Close() {}

// Replace implements storage.Sink.
func (r *Repository) Replace(ctx context.Context, m storage.Manifest, tables []*table.Table) error {
	id := m.RunID
	if id == "" {
		id = uuid.NewString()
	}
	rel := filepath.Join(runsDir, id)
	dir := filepath.Join(r.root, rel)
	if err := os.RemoveAll(dir); err != nil {
		return &apperrors.PersistenceError{Target: dir, Op: "stage", Cause: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &apperrors.PersistenceError{Target: dir, Op: "stage", Cause: err}
	}
	fail := func(target, op string, err error) error {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			r.log.Warn("remove staged run", "dir", dir, "err", rmErr)
		}
		return &apperrors.PersistenceError{Target: target, Op: op, Cause: err}
	}

	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return fail(t.Name(), "stage", err)
		}
		if err := r.writeTable(ctx, filepath.Join(dir, t.Name()+".parquet"), t); err != nil {
			return fail(t.Name(), "stage", err)
		}
		r.log.Debug("staged table", "table", t.Name(), "rows", t.Len())
	}
	if err := writeManifest(filepath.Join(dir, manifestFile), m); err != nil {
		return fail(storage.ManifestTable, "stage", err)
	}

	previous, _ := os.Readlink(filepath.Join(r.root, currentLink))
	if err := renameio.Symlink(rel, filepath.Join(r.root, currentLink)); err != nil {
		return fail(currentLink, "swap", err)
	}
	r.prune(rel, previous)
	return nil
}

func (r *Repository) writeTable(ctx context.Context, path string, t *table.Table) error {
	cols := t.Columns()
	group := make(pq.Group, len(cols))
	for _, c := range cols {
		group[c] = pq.Optional(pq.String())
	}
	schema := pq.NewSchema(t.Name(), group)
	leaf := make(map[string]int, len(cols))
	for i, f := range schema.Fields() {
		leaf[f.Name()] = i
	}
	meta, err := json.Marshal(cols)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := pq.NewWriter(f, schema, pq.KeyValueMetadata(columnsKey, string(meta)))
	n, err := storage.LoadBatches(ctx, r.log, t, r.batchSize,
		func(_ context.Context, _ []string, batch [][]any) (int64, error) {
			rows := make([]pq.Row, len(batch))
			for i, vals := range batch {
				rows[i] = toRow(cols, leaf, vals)
			}
			n, err := w.WriteRows(rows)
			return int64(n), err
		})
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if n != int64(t.Len()) {
		return fmt.Errorf("wrote %d of %d rows", n, t.Len())
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return f.Sync()
}

// toRow places each value at its leaf column index. Nil values are NULL.
func toRow(cols []string, leaf map[string]int, vals []any) pq.Row {
	row := make(pq.Row, len(cols))
	for j, c := range cols {
		idx := leaf[c]
		if s, ok := vals[j].(string); ok {
			row[idx] = pq.ValueOf(s).Level(0, 1, idx)
		} else {
			row[idx] = pq.NullValue().Level(0, 0, idx)
		}
	}
	return row
}

func writeManifest(path string, m storage.Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// prune removes run directories other than the current and previous ones.
func (r *Repository) prune(current, previous string) {
	entries, err := os.ReadDir(filepath.Join(r.root, runsDir))
	if err != nil {
		return
	}
	keep := map[string]bool{filepath.Base(current): true}
	if previous != "" && keepRuns > 1 {
		keep[filepath.Base(previous)] = true
	}
	for _, e := range entries {
		if keep[e.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(r.root, runsDir, e.Name())); err != nil {
			r.log.Warn("prune run", "run", e.Name(), "err", err)
		}
	}
}

// Read implements storage.Source.
func (r *Repository) Read(ctx context.Context, name string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(r.root, currentLink, name+".parquet")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("table %s: %w", name, storage.ErrNotFound)
		}
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := pq.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	fields := pf.Schema().Fields()
	var cols []string
	if raw, ok := pf.Lookup(columnsKey); ok {
		if err := json.Unmarshal([]byte(raw), &cols); err != nil {
			return nil, fmt.Errorf("%s metadata: %w", path, err)
		}
	} else {
		for _, fd := range fields {
			cols = append(cols, fd.Name())
		}
	}
	pos := make(map[string]int, len(cols))
	for i, c := range cols {
		pos[c] = i
	}
	leafPos := make([]int, len(fields))
	for i, fd := range fields {
		p, ok := pos[fd.Name()]
		if !ok {
			return nil, fmt.Errorf("%s: column %s missing from metadata", path, fd.Name())
		}
		leafPos[i] = p
	}

	out := table.New(name, cols)
	rd := pq.NewReader(f)
	defer rd.Close()
	buf := make([]pq.Row, 256)
	for {
		n, err := rd.ReadRows(buf)
		for _, row := range buf[:n] {
			vals := make([]string, len(cols))
			for _, v := range row {
				if v.IsNull() {
					continue
				}
				vals[leafPos[v.Column()]] = string(v.ByteArray())
			}
			if aerr := out.AppendRow(vals); aerr != nil {
				return nil, aerr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}

// Manifest implements storage.Source.
func (r *Repository) Manifest(ctx context.Context) (storage.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return storage.Manifest{}, err
	}
	b, err := os.ReadFile(filepath.Join(r.root, currentLink, manifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.Manifest{}, storage.ErrNotFound
		}
		return storage.Manifest{}, err
	}
	var m storage.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return storage.Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

func init() {
	storage.Register("parquet", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return newRepository(ctx, Config{Dir: cfg.Dir, BatchSize: cfg.BatchSize})
	})
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = func(ctx context.Context, cfg Config) (storage.Repository, error) {
	return NewRepository(ctx, cfg)
}

var _ storage.Repository = (*Repository)(nil)
