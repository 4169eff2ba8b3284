package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"

	"insurance-dq/internal/table"
)

// ManifestTable is the table (or file stem) the manifest is stored under.
const ManifestTable = "dq_manifest"

// TableInfo describes one persisted table.
type TableInfo struct {
	Name    string   `json:"name"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// Manifest records what a run wrote. It is written last, so its presence
// marks a complete run.
type Manifest struct {
	RunID     string      `json:"run_id"`
	WrittenAt time.Time   `json:"written_at"`
	Tables    []TableInfo `json:"tables"`
}

// NewManifest describes tables written by run.
func NewManifest(runID string, at time.Time, tables []*table.Table) Manifest {
	m := Manifest{RunID: runID, WrittenAt: at.UTC().Truncate(time.Second)}
	for _, t := range tables {
		m.Tables = append(m.Tables, TableInfo{Name: t.Name(), Rows: t.Len(), Columns: t.Columns()})
	}
	return m
}

// Table returns the entry for name.
func (m Manifest) Table(name string) (TableInfo, bool) {
	for _, ti := range m.Tables {
		if ti.Name == name {
			return ti, true
		}
	}
	return TableInfo{}, false
}

// Fingerprint is a stable hash of the manifest. Two reads of an unchanged
// store yield the same value.
func (m Manifest) Fingerprint() uint64 {
	b, err := json.Marshal(m)
	if err != nil {
		// Manifest holds only strings, ints and a time; Marshal cannot fail.
		return 0
	}
	return xxh3.Hash(b)
}

// manifestColumns is the row layout of the manifest when stored as a table.
var manifestColumns = []string{"position", "run_id", "written_at", "table_name", "row_count", "columns"}

// ManifestToTable flattens m into one row per table, for SQL backends.
func ManifestToTable(m Manifest) *table.Table {
	t := table.New(ManifestTable, manifestColumns)
	for i, ti := range m.Tables {
		cols, _ := json.Marshal(ti.Columns)
		_ = t.AppendRow([]string{
			strconv.Itoa(i),
			m.RunID,
			m.WrittenAt.UTC().Format(time.RFC3339),
			ti.Name,
			strconv.Itoa(ti.Rows),
			string(cols),
		})
	}
	return t
}

// ManifestFromTable reverses ManifestToTable. Rows may come back in any
// order. An empty table yields ErrNotFound.
func ManifestFromTable(t *table.Table) (Manifest, error) {
	if t.Len() == 0 {
		return Manifest{}, ErrNotFound
	}
	order := make([]int, t.Len())
	pos := make([]int, t.Len())
	for i := range order {
		p, err := strconv.Atoi(t.Value("position", i))
		if err != nil {
			return Manifest{}, fmt.Errorf("manifest position: %w", err)
		}
		order[i], pos[i] = i, p
	}
	sort.Slice(order, func(a, b int) bool { return pos[order[a]] < pos[order[b]] })

	var m Manifest
	for k, i := range order {
		if k == 0 {
			m.RunID = t.Value("run_id", i)
			at, err := time.Parse(time.RFC3339, t.Value("written_at", i))
			if err != nil {
				return Manifest{}, err
			}
			m.WrittenAt = at
		}
		rows, err := strconv.Atoi(t.Value("row_count", i))
		if err != nil {
			return Manifest{}, err
		}
		var cols []string
		if err := json.Unmarshal([]byte(t.Value("columns", i)), &cols); err != nil {
			return Manifest{}, err
		}
		m.Tables = append(m.Tables, TableInfo{Name: t.Value("table_name", i), Rows: rows, Columns: cols})
	}
	return m, nil
}
