// Package file implements a local filesystem-backed data source for the
// pipeline inputs.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Dir opens named input files below a root directory. It is safe for
// concurrent use.
type Dir struct{ root string }

// NewDir returns a Dir rooted at root.
func NewDir(root string) *Dir { return &Dir{root: root} }

// Root returns the directory inputs are read from.
func (d *Dir) Root() string { return d.root }

// Path returns the full path of the named input.
func (d *Dir) Path(name string) string { return filepath.Join(d.root, name) }

// Open opens the named input for reading.
//
// A canceled context is returned without touching the filesystem. Filesystem
// errors are wrapped with the path and keep errors.Is(err, fs.ErrNotExist)
// working for callers.
func (d *Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	p := d.Path(name)
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return f, nil
}
