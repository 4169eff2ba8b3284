package table

// Set is an ordered collection of tables addressed by name.
type Set struct {
	order  []string
	byName map[string]*Table
}

// NewSet builds a Set from tables, keeping their order. A later table with
// an already used name replaces the earlier one in place.
func NewSet(tables ...*Table) *Set {
	s := &Set{byName: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		s.Put(t)
	}
	return s
}

// Put adds or replaces a table.
func (s *Set) Put(t *Table) {
	if _, ok := s.byName[t.Name()]; !ok {
		s.order = append(s.order, t.Name())
	}
	s.byName[t.Name()] = t
}

// Get returns the table with the given name.
func (s *Set) Get(name string) (*Table, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Names returns table names in insertion order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Tables returns the tables in insertion order.
func (s *Set) Tables() []*Table {
	out := make([]*Table, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.byName[n])
	}
	return out
}

// Equal reports whether both sets hold equal tables in the same order.
func (s *Set) Equal(o *Set) bool {
	if len(s.order) != len(o.order) {
		return false
	}
	for i, n := range s.order {
		if o.order[i] != n || !s.byName[n].Equal(o.byName[n]) {
			return false
		}
	}
	return true
}
