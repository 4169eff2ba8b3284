// Package table holds the in-memory columnar representation used by every
// stage of the pipeline. Cells are kept as the raw strings read from the
// source; an empty (or all-space) cell is treated as NULL, matching how the
// CSV parser maps empty fields to nil.
//
// Tables are never mutated once built: filtering returns a new Table that
// shares no column storage with its input.
package table

import (
	"fmt"
	"strings"
)

// Table is a named, ordered set of equally long string columns.
type Table struct {
	name    string
	columns []string
	index   map[string]int
	cells   [][]string // cells[col][row]
	rows    int
}

// New returns an empty table with the given column order. Duplicate column
// names keep their first position.
func New(name string, columns []string) *Table {
	t := &Table{
		name:  name,
		index: make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if _, dup := t.index[c]; dup {
			continue
		}
		t.index[c] = len(t.columns)
		t.columns = append(t.columns, c)
	}
	t.cells = make([][]string, len(t.columns))
	return t
}

// Name returns the dataset name (e.g. "policies").
func (t *Table) Name() string { return t.name }

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Columns returns a copy of the column names in table order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Has reports whether the table carries the column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Missing returns the subset of columns the table does not carry, in the
// order given.
func (t *Table) Missing(columns ...string) []string {
	var out []string
	for _, c := range columns {
		if !t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Column returns the cells of one column. The slice must not be modified.
func (t *Table) Column(column string) ([]string, bool) {
	i, ok := t.index[column]
	if !ok {
		return nil, false
	}
	return t.cells[i], true
}

// Value returns the cell at (column,row), or "" when the column is absent.
func (t *Table) Value(column string, row int) string {
	i, ok := t.index[column]
	if !ok || row < 0 || row >= t.rows {
		return ""
	}
	return t.cells[i][row]
}

// Row returns a copy of row i in column order.
func (t *Table) Row(i int) []string {
	out := make([]string, len(t.columns))
	for c := range t.columns {
		out[c] = t.cells[c][i]
	}
	return out
}

// AppendRow appends one row; values must align with Columns().
func (t *Table) AppendRow(values []string) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("table %s: row width %d != columns %d", t.name, len(values), len(t.columns))
	}
	for c, v := range values {
		t.cells[c] = append(t.cells[c], v)
	}
	t.rows++
	return nil
}

// Filter returns a new table holding the rows where keep[i] is true, in
// their original order. keep must have Len() entries.
func (t *Table) Filter(keep []bool) *Table {
	out := New(t.name, t.columns)
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}
	for c := range t.columns {
		col := make([]string, 0, n)
		for r, k := range keep {
			if k {
				col = append(col, t.cells[c][r])
			}
		}
		out.cells[c] = col
	}
	out.rows = n
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	keep := make([]bool, t.rows)
	for i := range keep {
		keep[i] = true
	}
	return t.Filter(keep)
}

// Keys returns the set of non-null values of a column, trimmed of spaces.
func (t *Table) Keys(column string) KeySet {
	col, ok := t.Column(column)
	if !ok {
		return KeySet{}
	}
	ks := make(KeySet, len(col))
	for _, v := range col {
		if IsNull(v) {
			continue
		}
		ks[strings.TrimSpace(v)] = struct{}{}
	}
	return ks
}

// Equal reports whether two tables have the same name, columns and cells.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.name != o.name || t.rows != o.rows || len(t.columns) != len(o.columns) {
		return false
	}
	for c, name := range t.columns {
		if o.columns[c] != name {
			return false
		}
		for r := 0; r < t.rows; r++ {
			if t.cells[c][r] != o.cells[c][r] {
				return false
			}
		}
	}
	return true
}

// IsNull reports whether a raw cell counts as missing.
func IsNull(v string) bool { return strings.TrimSpace(v) == "" }

// KeySet is a set of key values captured from one column.
type KeySet map[string]struct{}

// Has reports membership of the trimmed value; NULL values are never
// members.
func (k KeySet) Has(v string) bool {
	if IsNull(v) {
		return false
	}
	_, ok := k[strings.TrimSpace(v)]
	return ok
}
