// Package csv reads delimited text into a table.Table. Headers are
// normalized to snake_case, a UTF-8 BOM is stripped, and rows whose width
// does not match the header are skipped and counted instead of aborting the
// load.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"insurance-dq/internal/table"
)

// Options configures the CSV parser. Zero values select the defaults.
type Options struct {
	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading and trailing spaces from each value.
	TrimSpace bool

	// HeaderMap maps source header names to canonical column names. Keys may
	// be either the raw header text or its normalized form.
	HeaderMap map[string]string

	// Logger receives one warning per skipped row, up to LogLimit. Nil means
	// slog.Default().
	Logger *slog.Logger

	// LogLimit caps skipped-row warnings. When zero, 400 is used.
	LogLimit int
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs but not concurrently.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Result is the outcome of parsing one input.
type Result struct {
	Table *table.Table
	// Skipped counts malformed rows and rows whose width differs from the
	// header.
	Skipped int
}

// Parse reads a header line and all body rows from r into a table named
// name. An input without a header line is an error; an input with a header
// and no rows yields an empty table.
func (p *Parser) Parse(r io.Reader, name string) (Result, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1

	h, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return Result{}, fmt.Errorf("read csv header: empty input")
		}
		return Result{}, fmt.Errorf("read csv header: %w", err)
	}
	headers := normalizeHeaders(h, p.opt.HeaderMap)
	out := table.New(name, headers)
	// table.New drops duplicate columns; keep the first occurrence of each.
	width := len(headers)
	keepIdx := firstOccurrences(headers)

	log := p.opt.Logger
	if log == nil {
		log = slog.Default()
	}
	limit := p.opt.LogLimit
	if limit == 0 {
		limit = 400
	}

	skipped := 0
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < limit {
				log.Warn("skipping csv row", "table", name, "line", line, "err", err)
			}
			skipped++
			continue
		}
		if len(row) != width {
			if skipped < limit {
				log.Warn("skipping csv row", "table", name, "line", line,
					"expected_fields", width, "got_fields", len(row))
			}
			skipped++
			continue
		}
		vals := make([]string, 0, len(keepIdx))
		for _, i := range keepIdx {
			v := row[i]
			if p.opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			vals = append(vals, v)
		}
		if err := out.AppendRow(vals); err != nil {
			return Result{}, fmt.Errorf("append row %d: %w", line, err)
		}
	}
	return Result{Table: out, Skipped: skipped}, nil
}

// keyFor returns name, or a synthesized "col_N" when name is empty.
func keyFor(idx int, name string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("col_%d", idx)
}

func firstOccurrences(headers []string) []int {
	seen := make(map[string]struct{}, len(headers))
	idx := make([]int, 0, len(headers))
	for i, h := range headers {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		idx = append(idx, i)
	}
	return idx
}
