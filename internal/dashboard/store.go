package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"insurance-dq/internal/dq"
	"insurance-dq/internal/schema"
	"insurance-dq/internal/storage"
	"insurance-dq/internal/table"
)

// ErrNoData means the store holds no completed run or no policies. The
// front-end shows a notice instead of failing.
var ErrNoData = errors.New("no policy data found; run the pipeline first")

// Snapshot is the joined view of one persisted run.
type Snapshot struct {
	Fingerprint uint64
	RunID       string
	WrittenAt   time.Time
	Rows        []PolicyMetric
	// Columns are the detail columns the persisted tables can fill.
	Columns []string
	Options Options
}

// Store caches the snapshot of the last persisted run, keyed by the
// manifest fingerprint. It never writes to the source.
type Store struct {
	src    storage.Source
	parser dq.DateParser
	log    *slog.Logger

	mu    sync.Mutex
	cur   *Snapshot
	loads int
}

// NewStore returns a store reading from src. layouts parse the persisted
// date cells; nil uses dq.DefaultLayouts.
func NewStore(src storage.Source, layouts []string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{src: src, parser: dq.DateParser{Layouts: layouts}, log: log}
}

// Current returns the cached snapshot while the manifest fingerprint is
// unchanged, and rebuilds it otherwise.
func (s *Store) Current(ctx context.Context) (*Snapshot, error) {
	m, err := s.src.Manifest(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fp := m.Fingerprint()
	if s.cur != nil && s.cur.Fingerprint == fp {
		return s.cur, nil
	}
	snap, err := s.load(ctx, m)
	if err != nil {
		return nil, err
	}
	s.cur = snap
	return snap, nil
}

// Reload drops the cache and rebuilds the snapshot.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()
	return s.Current(ctx)
}

// Loads returns how many times the snapshot was rebuilt.
func (s *Store) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func (s *Store) load(ctx context.Context, m storage.Manifest) (*Snapshot, error) {
	if ti, ok := m.Table(schema.Policies); !ok || ti.Rows == 0 {
		return nil, ErrNoData
	}

	var policies, agents, payments *table.Table
	g, gctx := errgroup.WithContext(ctx)
	read := func(name string, dst **table.Table) {
		if _, ok := m.Table(name); !ok {
			return
		}
		g.Go(func() error {
			t, err := s.src.Read(gctx, name)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			*dst = t
			return nil
		})
	}
	read(schema.Policies, &policies)
	read(schema.Agents, &agents)
	read(schema.Payments, &payments)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if policies == nil || policies.Len() == 0 {
		return nil, ErrNoData
	}

	rows, cols := Join(policies, agents, payments, s.parser)
	s.loads++
	s.log.Info("dashboard snapshot loaded",
		"run_id", m.RunID,
		"policies", len(rows),
		"agents", rowCount(agents),
		"payments", rowCount(payments))

	return &Snapshot{
		Fingerprint: m.Fingerprint(),
		RunID:       m.RunID,
		WrittenAt:   m.WrittenAt,
		Rows:        rows,
		Columns:     cols,
		Options:     FilterOptions(rows),
	}, nil
}

func rowCount(t *table.Table) int {
	if t == nil {
		return 0
	}
	return t.Len()
}
