package dq

import (
	"insurance-dq/internal/schema"
	"insurance-dq/internal/table"
)

// Snapshot holds the key sets captured when the raw tables were loaded.
// Referential checks and referential pruning read it instead of the current
// state of the parent table.
type Snapshot map[string]table.KeySet

func snapshotKey(dataset, column string) string { return dataset + "." + column }

// TakeSnapshot captures the key column of every contract found in ds.
func TakeSnapshot(ds *table.Set, contracts []schema.Contract) Snapshot {
	snap := make(Snapshot, len(contracts))
	for _, c := range contracts {
		t, ok := ds.Get(c.Name)
		if !ok {
			continue
		}
		snap[snapshotKey(c.Name, c.Key)] = t.Keys(c.Key)
	}
	return snap
}

// Keys returns the captured key set, or an empty set.
func (s Snapshot) Keys(dataset, column string) table.KeySet {
	if ks, ok := s[snapshotKey(dataset, column)]; ok {
		return ks
	}
	return table.KeySet{}
}

// Catalog builds the ordered check list for the given contracts:
// uniqueness of every key, then referential integrity, then non-negative
// money, then per dataset its date validity and date order checks.
func Catalog(contracts []schema.Contract, snap Snapshot, w DateWindow) []Check {
	var checks []Check

	for _, c := range contracts {
		if c.Key != "" {
			checks = append(checks, Unique(c.Name, c.Key))
		}
	}
	for _, c := range contracts {
		for _, ref := range c.References {
			checks = append(checks, References(c.Name, ref.Column, ref.Parent, ref.ParentColumn,
				snap.Keys(ref.Parent, ref.ParentColumn)))
		}
	}
	for _, c := range contracts {
		for _, col := range c.ColumnsOfType(schema.TypeMoney) {
			checks = append(checks, NonNegative(c.Name, col))
		}
	}
	for _, c := range contracts {
		for _, f := range c.Fields {
			if f.Type != schema.TypeDate || !f.Required {
				continue
			}
			checks = append(checks, ValidDate(c.Name, f.Name, w))
		}
		if c.Order != nil {
			checks = append(checks, DateOrder(c.Name, c.Order.Start, c.Order.End, w.Parser))
		}
	}
	return checks
}
