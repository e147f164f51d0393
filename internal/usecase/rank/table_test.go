package rank

import "testing"

func TestTable_Bounds(t *testing.T) {
	tb := newTable([]float64{0.5, 0.5})
	a, isNew := tb.handle("a")
	if !isNew {
		t.Fatal("want new handle")
	}
	if h, isNew := tb.handle("a"); isNew || h != a {
		t.Fatal("want the same handle on second sight")
	}
	tb.set(0, a, 0.5)
	tb.set(0, a, 0.1) // already known, ignored

	lo, up := tb.bounds(a, []float64{0.6, 0.5})
	if lo != 0.25 || up != 0.5 {
		t.Fatalf("want bounds [0.25, 0.5], got [%f, %f]", lo, up)
	}
	if tb.complete().Contains(a) || !tb.incomplete().Contains(a) {
		t.Fatal("a is missing attribute 1")
	}

	tb.exhaust(1)
	lo, up = tb.bounds(a, []float64{0.6, 0})
	if lo != 0.25 || up != 0.25 {
		t.Fatalf("exhausted attribute must settle at zero, got [%f, %f]", lo, up)
	}
	b, _ := tb.handle("b")
	if !tb.isKnown(1, b) {
		t.Fatal("candidates seen after exhaustion are known on the exhausted attribute")
	}
	if got := tb.complete().GetCardinality(); got != 1 {
		t.Fatalf("want 1 complete candidate, got %d", got)
	}
	if got := tb.breakdown(a, []string{"x", "y"}); got["x"] != 0.5 || got["y"] != 0 || len(got) != 2 {
		t.Fatalf("unexpected breakdown %v", got)
	}
}

func TestTable_RankTieBreak(t *testing.T) {
	tb := newTable([]float64{1})
	for _, id := range []string{"c", "a", "b"} {
		h, _ := tb.handle(id)
		tb.set(0, h, 0.5)
	}
	ranked := tb.rank([]uint32{0, 1, 2}, []float64{0.5})
	var got string
	for _, s := range ranked {
		got += tb.ids[s.h]
	}
	if got != "abc" {
		t.Fatalf("want ties ordered by identifier, got %s", got)
	}
}
