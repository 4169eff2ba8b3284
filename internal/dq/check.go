// Package dq implements the data-quality core: a catalog of checks, the rule
// engine that counts their failures, and the cleaner that drops the failing
// rows.
//
// Every check is one predicate object. The engine asks it which rows fail and
// records the count as a Finding; the cleaner asks the same object which rows
// fail and keeps the others. Thresholds, layouts and key snapshots live in the
// check, never in the engine or the cleaner, so the two cannot drift apart.
package dq

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"insurance-dq/internal/table"
)

// Kind classifies a check. The numeric order is the order in which the
// cleaner applies checks of one dataset.
type Kind int

const (
	KindUnique Kind = iota
	KindReference
	KindNonNegative
	KindValidDate
	KindDateOrder
)

func (k Kind) String() string {
	switch k {
	case KindUnique:
		return "unique"
	case KindReference:
		return "referential_integrity"
	case KindNonNegative:
		return "non_negative"
	case KindValidDate:
		return "valid_date"
	case KindDateOrder:
		return "date_order"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Check is a named row predicate over one dataset.
type Check struct {
	Dataset string
	Name    string
	Kind    Kind
	// Columns are the columns the predicate reads.
	Columns []string
	// Optional checks are skipped when a column is absent; required checks
	// turn an absent column into a SchemaError.
	Optional bool

	fails func(t *table.Table) []bool
	// drops, when set, is the stricter predicate the cleaner removes rows
	// by. It must flag every row fails flags.
	drops func(t *table.Table) []bool
}

// Fails returns one flag per row, true where the row violates the check.
// The table is not modified.
func (c Check) Fails(t *table.Table) []bool {
	return c.fails(t)
}

// Count returns the number of failing rows.
func (c Check) Count(t *table.Table) int {
	n := 0
	for _, f := range c.fails(t) {
		if f {
			n++
		}
	}
	return n
}

// Drops returns one flag per row, true where the cleaner removes the row.
// It is Fails unless the check prunes more strictly than it reports.
func (c Check) Drops(t *table.Table) []bool {
	if c.drops != nil {
		return c.drops(t)
	}
	return c.fails(t)
}

// Keep returns a new table with the dropped rows removed.
func (c Check) Keep(t *table.Table) *table.Table {
	drops := c.Drops(t)
	keep := make([]bool, len(drops))
	for i, d := range drops {
		keep[i] = !d
	}
	return t.Filter(keep)
}

// Unique fails every row whose key repeats an earlier row's key. The first
// occurrence passes. NULL keys are compared like any other value, so a second
// NULL key is a duplicate too.
func Unique(dataset, key string) Check {
	return Check{
		Dataset: dataset,
		Name:    "Unique " + key,
		Kind:    KindUnique,
		Columns: []string{key},
		fails: func(t *table.Table) []bool {
			col, _ := t.Column(key)
			out := make([]bool, len(col))
			seen := make(map[string]struct{}, len(col))
			for i, v := range col {
				v = strings.TrimSpace(v)
				if _, dup := seen[v]; dup {
					out[i] = true
					continue
				}
				seen[v] = struct{}{}
			}
			return out
		},
	}
}

// NonNegative fails rows whose value parses as a number below zero. The
// cleaner also drops non-NULL cells that are not numbers, so every money
// value left after cleaning parses and is at least zero. NULL cells pass;
// the column is optional.
func NonNegative(dataset, column string) Check {
	// scan returns, per row, whether the value is negative and whether it is
	// non-NULL text that does not parse.
	scan := func(t *table.Table) (neg, bad []bool) {
		col, _ := t.Column(column)
		neg = make([]bool, len(col))
		bad = make([]bool, len(col))
		for i, v := range col {
			if table.IsNull(v) {
				continue
			}
			d, err := decimal.NewFromString(strings.TrimSpace(v))
			if err != nil {
				bad[i] = true
				continue
			}
			neg[i] = d.IsNegative()
		}
		return neg, bad
	}
	return Check{
		Dataset:  dataset,
		Name:     "Non-negative " + column,
		Kind:     KindNonNegative,
		Columns:  []string{column},
		Optional: true,
		fails: func(t *table.Table) []bool {
			neg, _ := scan(t)
			return neg
		},
		drops: func(t *table.Table) []bool {
			neg, bad := scan(t)
			for i := range neg {
				neg[i] = neg[i] || bad[i]
			}
			return neg
		},
	}
}

// References fails child rows whose key is NULL or absent from parentKeys.
// parentKeys is the load-time snapshot of the parent's key column.
func References(dataset, column, parent, parentColumn string, parentKeys table.KeySet) Check {
	return Check{
		Dataset: dataset,
		Name:    fmt.Sprintf("Referential integrity %s->%s", column, parentColumn),
		Kind:    KindReference,
		Columns: []string{column},
		fails: func(t *table.Table) []bool {
			col, _ := t.Column(column)
			out := make([]bool, len(col))
			for i, v := range col {
				out[i] = !parentKeys.Has(strings.TrimSpace(v))
			}
			return out
		},
	}
}

// ValidDate fails rows whose value is missing, does not parse, or lies
// outside the window. A row failing several conditions counts once.
func ValidDate(dataset, column string, w DateWindow) Check {
	return Check{
		Dataset: dataset,
		Name:    "Valid " + column,
		Kind:    KindValidDate,
		Columns: []string{column},
		fails: func(t *table.Table) []bool {
			col, _ := t.Column(column)
			out := make([]bool, len(col))
			for i, v := range col {
				out[i] = !w.Valid(v)
			}
			return out
		},
	}
}

// DateOrder fails rows where both dates parse and end is before start. The
// cleaner is stricter and also drops rows where end equals start, so every
// kept row has start strictly before end. Rows with an unparseable side pass
// both; ValidDate reports them.
func DateOrder(dataset, start, end string, p DateParser) Check {
	// compare returns -1, 0 or 1 for end against start, and false when either
	// side does not parse.
	compare := func(t *table.Table) ([]int, []bool) {
		starts, _ := t.Column(start)
		ends, _ := t.Column(end)
		cmp := make([]int, len(starts))
		ok := make([]bool, len(starts))
		for i := range starts {
			s, okS := p.Parse(starts[i])
			e, okE := p.Parse(ends[i])
			if !okS || !okE {
				continue
			}
			ok[i] = true
			cmp[i] = e.Compare(s)
		}
		return cmp, ok
	}
	return Check{
		Dataset: dataset,
		Name:    fmt.Sprintf("Date logic %s<%s", start, end),
		Kind:    KindDateOrder,
		Columns: []string{start, end},
		fails: func(t *table.Table) []bool {
			cmp, ok := compare(t)
			out := make([]bool, len(cmp))
			for i := range cmp {
				out[i] = ok[i] && cmp[i] < 0
			}
			return out
		},
		drops: func(t *table.Table) []bool {
			cmp, ok := compare(t)
			out := make([]bool, len(cmp))
			for i := range cmp {
				out[i] = ok[i] && cmp[i] <= 0
			}
			return out
		},
	}
}
