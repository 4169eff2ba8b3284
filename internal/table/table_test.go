package table

import (
	"reflect"
	"strings"
	"testing"
)

func mkTable(t *testing.T) *Table {
	t.Helper()
	tb := New("policies", []string{"policy_id", "status"})
	for _, r := range [][]string{{"P1", "active"}, {"P2", ""}, {"P3", "lapsed"}} {
		if err := tb.AppendRow(r); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}
	return tb
}

func TestAppendRowWidthMismatch(t *testing.T) {
	tb := New("x", []string{"a", "b"})
	if err := tb.AppendRow([]string{"1"}); err == nil {
		t.Fatalf("expected width error")
	}
	if tb.Len() != 0 {
		t.Fatalf("len=%d want 0", tb.Len())
	}
}

func TestFilterKeepsOrderAndDoesNotAlias(t *testing.T) {
	tb := mkTable(t)
	out := tb.Filter([]bool{true, false, true})

	if got, want := out.Len(), 2; got != want {
		t.Fatalf("len=%d want %d", got, want)
	}
	col, _ := out.Column("policy_id")
	if !reflect.DeepEqual(col, []string{"P1", "P3"}) {
		t.Fatalf("policy_id=%v", col)
	}
	if tb.Len() != 3 {
		t.Fatalf("input mutated: len=%d", tb.Len())
	}
}

func TestKeysSkipNulls(t *testing.T) {
	tb := mkTable(t)
	ks := tb.Keys("status")
	if len(ks) != 2 || !ks.Has("active") || ks.Has("") {
		t.Fatalf("keys=%v", ks)
	}
	if len(tb.Keys("nope")) != 0 {
		t.Fatalf("missing column should yield empty set")
	}
}

func TestMissingAndValue(t *testing.T) {
	tb := mkTable(t)
	if got := tb.Missing("policy_id", "agent_id", "status"); !reflect.DeepEqual(got, []string{"agent_id"}) {
		t.Fatalf("missing=%v", got)
	}
	if v := tb.Value("status", 2); v != "lapsed" {
		t.Fatalf("value=%q", v)
	}
	if v := tb.Value("agent_id", 0); v != "" {
		t.Fatalf("absent column value=%q", v)
	}
}

func TestEqualAndClone(t *testing.T) {
	tb := mkTable(t)
	cp := tb.Clone()
	if !tb.Equal(cp) {
		t.Fatalf("clone not equal")
	}
	if tb.Equal(cp.Filter([]bool{true, true, false})) {
		t.Fatalf("filtered clone should differ")
	}
}

func TestSetOrderAndReplace(t *testing.T) {
	a := New("a", []string{"x"})
	b := New("b", []string{"x"})
	s := NewSet(a, b)
	s.Put(New("a", []string{"y"}))

	if got := s.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("names=%v", got)
	}
	got, _ := s.Get("a")
	if !got.Has("y") {
		t.Fatalf("replacement not stored")
	}
}

func TestWriteCSV(t *testing.T) {
	var b strings.Builder
	if err := WriteCSV(&b, mkTable(t)); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "policy_id,status\nP1,active\nP2,\nP3,lapsed\n"
	if b.String() != want {
		t.Fatalf("csv=%q want %q", b.String(), want)
	}
}

func TestKeysTrimSpace(t *testing.T) {
	tb := New("x", []string{"id"})
	_ = tb.AppendRow([]string{" A1 "})
	if ks := tb.Keys("id"); !ks.Has("A1") || !ks.Has("A1  ") {
		t.Fatalf("keys=%v", ks)
	}
}
