// Package loader reads the raw input files named by the dataset contracts
// into a table.Set. It is the only stage that touches the input directory.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"insurance-dq/internal/datasource/file"
	apperrors "insurance-dq/internal/errors"
	pcsv "insurance-dq/internal/parser/csv"
	"insurance-dq/internal/schema"
	"insurance-dq/internal/table"
)

// Options configures a load.
type Options struct {
	// Files overrides the contract file name per dataset.
	Files map[string]string
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// Logger receives per-file progress. Nil means slog.Default().
	Logger *slog.Logger
}

// Stats describes one loaded file.
type Stats struct {
	Dataset string
	Path    string
	Rows    int
	Skipped int
}

// Loader reads contracts' inputs from a directory.
type Loader struct {
	src       *file.Dir
	contracts []schema.Contract
	opt       Options
}

// New returns a loader over src.
func New(src *file.Dir, contracts []schema.Contract, opt Options) *Loader {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Loader{src: src, contracts: contracts, opt: opt}
}

// FileFor returns the input file name of the dataset.
func (l *Loader) FileFor(c schema.Contract) string {
	if f, ok := l.opt.Files[c.Name]; ok && f != "" {
		return f
	}
	return c.File
}

// Load reads every input file. The returned set holds one table per
// contract, in contract order. A missing file yields MissingInputError; a
// file lacking a required column yields SchemaError. Either way no table is
// returned.
func (l *Loader) Load(ctx context.Context) (*table.Set, []Stats, error) {
	tables := make([]*table.Table, len(l.contracts))
	stats := make([]Stats, len(l.contracts))

	g, ctx := errgroup.WithContext(ctx)
	for i, c := range l.contracts {
		g.Go(func() error {
			t, st, err := l.loadOne(ctx, c)
			if err != nil {
				return err
			}
			tables[i], stats[i] = t, st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return table.NewSet(tables...), stats, nil
}

func (l *Loader) loadOne(ctx context.Context, c schema.Contract) (*table.Table, Stats, error) {
	name := l.FileFor(c)
	path := l.src.Path(name)

	rc, err := l.src.Open(ctx, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Stats{}, &apperrors.MissingInputError{Dataset: c.Name, Path: path, Cause: err}
		}
		return nil, Stats{}, fmt.Errorf("load %s: %w", c.Name, err)
	}
	defer rc.Close()

	p := pcsv.NewParser(pcsv.Options{
		Comma:     l.opt.Comma,
		HeaderMap: c.HeaderMap,
		Logger:    l.opt.Logger,
	})
	res, err := p.Parse(rc, c.Name)
	if err != nil {
		// A file without a header line carries none of the required columns.
		l.opt.Logger.Warn("input has no header", "dataset", c.Name, "path", path, "err", err)
		return nil, Stats{}, &apperrors.SchemaError{Dataset: c.Name, Columns: c.RequiredColumns()}
	}
	if missing := res.Table.Missing(c.RequiredColumns()...); len(missing) > 0 {
		return nil, Stats{}, &apperrors.SchemaError{Dataset: c.Name, Columns: missing}
	}

	st := Stats{Dataset: c.Name, Path: path, Rows: res.Table.Len(), Skipped: res.Skipped}
	l.opt.Logger.Info("loaded input", "dataset", c.Name, "path", path, "rows", st.Rows, "skipped", st.Skipped)
	return res.Table, st, nil
}
