package dq

import (
	"sort"

	"insurance-dq/internal/table"
)

// Cleaner produces sanitized tables by removing the rows each catalog check
// drops. It never looks at findings.
//
// Per dataset the checks are applied in Kind order (dedup, referential
// pruning, range pruning, date validity, date order), each step reading the
// previous step's output. Referential checks carry the load-time snapshot, so
// pruning a child never depends on how its parent was cleaned.
type Cleaner struct {
	checks []Check
}

// NewCleaner returns a cleaner over the same checks the engine counts with.
func NewCleaner(checks []Check) *Cleaner {
	return &Cleaner{checks: checks}
}

// Step reports the effect of one check during cleaning.
type Step struct {
	Dataset string
	Check   string
	Kind    Kind
	Before  int
	Dropped int
}

// Clean returns a new set with every table sanitized, plus the per-step
// row counts. Tables without checks are copied unchanged. Running Clean on
// its own output with the same checks removes nothing.
func (c *Cleaner) Clean(ds *table.Set) (*table.Set, []Step, error) {
	run, _, err := Plan(c.checks, ds)
	if err != nil {
		return nil, nil, err
	}

	byDataset := make(map[string][]Check)
	for _, ch := range run {
		byDataset[ch.Dataset] = append(byDataset[ch.Dataset], ch)
	}

	out := table.NewSet()
	var steps []Step
	for _, t := range ds.Tables() {
		checks := byDataset[t.Name()]
		sort.SliceStable(checks, func(i, j int) bool { return checks[i].Kind < checks[j].Kind })

		cur := t.Clone()
		for _, ch := range checks {
			before := cur.Len()
			cur = ch.Keep(cur)
			steps = append(steps, Step{
				Dataset: t.Name(),
				Check:   ch.Name,
				Kind:    ch.Kind,
				Before:  before,
				Dropped: before - cur.Len(),
			})
		}
		out.Put(cur)
	}
	return out, steps, nil
}
