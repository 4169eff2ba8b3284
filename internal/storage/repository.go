// Package storage defines the persistence contract for sanitized tables and
// a kind -> factory registry that concrete backends join from their init
// functions. Callers import storage/all for side effects and stay
// backend-agnostic.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"insurance-dq/internal/table"
)

// ErrNotFound is returned by Read when the named table has never been
// written, and by Manifest when no run has completed yet.
var ErrNotFound = errors.New("storage: not found")

// Config selects and configures a backend.
type Config struct {
	// Kind is the registered backend name, e.g. "parquet" or "sqlite".
	Kind string
	// DSN is the connection string of SQL backends.
	DSN string
	// Dir is the root directory of file backends.
	Dir string
	// BatchSize bounds the rows sent per insert statement or copy call.
	BatchSize int
}

// Sink persists one run's sanitized tables.
type Sink interface {
	// Replace overwrites every named table and the manifest as one unit.
	// Readers observe either the previous run or this one. On error nothing
	// of this run stays visible.
	Replace(ctx context.Context, m Manifest, tables []*table.Table) error
}

// Source reads persisted tables.
type Source interface {
	// Read returns the table as last written, or ErrNotFound.
	Read(ctx context.Context, name string) (*table.Table, error)
	// Manifest returns the manifest of the last completed run, or
	// ErrNotFound.
	Manifest(ctx context.Context) (Manifest, error)
}

// Repository is implemented by every backend.
type Repository interface {
	Sink
	Source
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering the same kind
// again replaces the previous factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
