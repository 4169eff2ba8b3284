package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"insurance-dq/internal/metrics"
	"insurance-dq/internal/table"
)

// DefaultBatchSize is used when Config.BatchSize is not positive.
const DefaultBatchSize = 5000

// CopyFn abstracts a backend's bulk insert. It inserts rows aligned to
// columns and returns the number of rows inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// Values converts row i of t into driver values. Empty cells become NULL.
func Values(t *table.Table, i int) []any {
	raw := t.Row(i)
	out := make([]any, len(raw))
	for j, v := range raw {
		if v == "" {
			out[j] = nil
			continue
		}
		out[j] = v
	}
	return out
}

// LoadBatches sends the rows of t to copyFn in batches of batchSize and
// returns the total reported by copyFn. It stops at the first error or when
// ctx is done. Every flushed batch is counted under the job of ctx.
func LoadBatches(ctx context.Context, log *slog.Logger, t *table.Table, batchSize int, copyFn CopyFn) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	var (
		total   int64
		batches int
		cols    = t.Columns()
		batch   = make([][]any, 0, min(batchSize, t.Len()))
		start   = time.Now()
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, cols, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			return err
		}
		batches++
		metrics.RecordBatches(metrics.JobFrom(ctx), 1)
		log.Debug("batch flushed", "table", t.Name(), "batch", batches, "inserted", n, "total", total,
			"elapsed", time.Since(start).Truncate(time.Millisecond))
		return nil
	}

	for i := 0; i < t.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch = append(batch, Values(t, i))
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
