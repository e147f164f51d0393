package rtree

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/geometry"
)

func randomPoints(rng *rand.Rand, n, dim int) []Entry {
	out := make([]Entry, n)
	for i := range out {
		p := make(geometry.Point, dim)
		for j := range p {
			p[j] = rng.Float64() * 100
		}
		out[i] = PointEntry(fmt.Sprintf("p%04d", i), p)
	}
	return out
}

func bruteForce(entries []Entry, q geometry.Point) []Neighbor {
	out := make([]Neighbor, len(entries))
	for i, e := range entries {
		out[i] = Neighbor{ID: e.ID, Rect: e.Rect, Distance: geometry.Distance(q, geometry.Point(e.Rect.Min))}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// verify walks the tree and checks MBR tightness, parent links, fan-out and
// that every leaf sits at the same depth.
func verify(t *testing.T, tr *Tree) {
	t.Helper()
	leafDepth := -1
	count := 0
	var walk func(n, depth int)
	walk = func(n, depth int) {
		nd := tr.nodes[n]
		if n != tr.root && tr.count(n) > tr.maxEntries {
			t.Fatalf("node %d overflows: %d > %d", n, tr.count(n), tr.maxEntries)
		}
		var mbr geometry.Rectangle
		if nd.leaf {
			if leafDepth == -1 {
				leafDepth = depth
			} else if leafDepth != depth {
				t.Fatalf("unbalanced tree: leaf at depth %d and %d", leafDepth, depth)
			}
			for i, e := range nd.entries {
				if i == 0 {
					mbr = e.Rect
				} else {
					mbr = geometry.Union(mbr, e.Rect)
				}
			}
			count += len(nd.entries)
		} else {
			for i, c := range nd.children {
				if tr.nodes[c].parent != n {
					t.Fatalf("child %d has parent %d, want %d", c, tr.nodes[c].parent, n)
				}
				if i == 0 {
					mbr = tr.nodes[c].mbr
				} else {
					mbr = geometry.Union(mbr, tr.nodes[c].mbr)
				}
				walk(c, depth+1)
			}
		}
		for i := range mbr.Min {
			if mbr.Min[i] != nd.mbr.Min[i] || mbr.Max[i] != nd.mbr.Max[i] {
				t.Fatalf("node %d MBR %v is not tight (want %v)", n, nd.mbr, mbr)
			}
		}
	}
	walk(tr.root, 0)
	if count != tr.Len() {
		t.Fatalf("tree holds %d entries, Len() = %d", count, tr.Len())
	}
}

func TestSearch_PivotScenario(t *testing.T) {
	tr, err := New(2, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for id, p := range map[string]geometry.Point{"a": {0, 0}, "b": {3, 4}, "c": {1, 1}} {
		if err := tr.InsertPoint(id, p); err != nil {
			t.Fatalf("InsertPoint: %v", err)
		}
	}

	got, err := tr.Search(geometry.Point{0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("want [a c], got %+v", got)
	}
	if got[0].Distance != 0 || math.Abs(got[1].Distance-math.Sqrt2) > 1e-12 {
		t.Fatalf("unexpected distances %f %f", got[0].Distance, got[1].Distance)
	}
}

func TestInsert_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	entries := randomPoints(rng, 300, 3)

	tr, err := New(3, 6)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, e := range entries {
		if err := tr.Insert(e); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	verify(t, tr)
	if tr.Height() < 3 {
		t.Fatalf("expected splits to grow the tree, height = %d", tr.Height())
	}

	q := geometry.Point{50, 50, 50}
	got, err := tr.Search(q, len(entries))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := bruteForce(entries, q)
	if len(got) != len(want) {
		t.Fatalf("want %d results, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID || math.Abs(got[i].Distance-want[i].Distance) > 1e-9 {
			t.Fatalf("result %d: got %s@%f, want %s@%f", i, got[i].ID, got[i].Distance, want[i].ID, want[i].Distance)
		}
	}
}

func TestBulkLoad_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	entries := randomPoints(rng, 257, 2)

	tr, err := BulkLoad(2, 8, 0, entries)
	if err != nil {
		t.Fatalf("BulkLoad: %v", err)
	}
	verify(t, tr)

	// Inserting after a bulk load keeps the invariants.
	extra := PointEntry("extra", geometry.Point{-5, 120})
	if err := tr.Insert(extra); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	verify(t, tr)
	entries = append(entries, extra)

	for _, q := range []geometry.Point{{0, 0}, {50, 50}, {99, 1}} {
		got, err := tr.Search(q, 10)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		want := bruteForce(entries, q)[:10]
		for i := range want {
			if got[i].ID != want[i].ID {
				t.Fatalf("query %v result %d: got %s, want %s", q, i, got[i].ID, want[i].ID)
			}
		}
	}
}

func TestSearch_OrderAndCount(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	entries := randomPoints(rng, 40, 4)
	tr, err := BulkLoad(4, 5, 2, entries)
	if err != nil {
		t.Fatalf("BulkLoad: %v", err)
	}

	for _, k := range []int{0, 1, 7, 40, 100} {
		got, err := tr.Search(geometry.Point{10, 20, 30, 40}, k)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != min(k, len(entries)) {
			t.Fatalf("k=%d: want %d results, got %d", k, min(k, len(entries)), len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Distance < got[i-1].Distance {
				t.Fatalf("k=%d: distances not ascending at %d", k, i)
			}
		}
	}
}

func TestSearch_EmptyTree(t *testing.T) {
	tr, err := New(2, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := tr.Search(geometry.Point{1, 1}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want no results, got %d", len(got))
	}
	if _, ok := tr.Bounds(); ok {
		t.Fatal("empty tree must have no bounds")
	}
}

func TestRectangleEntries(t *testing.T) {
	tr, err := New(2, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	box, _ := geometry.NewRectangle([]float64{2, 2}, []float64{4, 4})
	if err := tr.Insert(Entry{ID: "box", Rect: box}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.InsertPoint("far", geometry.Point{10, 10}); err != nil {
		t.Fatalf("InsertPoint: %v", err)
	}

	got, err := tr.Search(geometry.Point{3, 3}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got[0].ID != "box" || got[0].Distance != 0 {
		t.Fatalf("point inside the box must be at distance 0, got %+v", got[0])
	}
}

func TestInsert_Errors(t *testing.T) {
	tr, err := New(2, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tr.InsertPoint("x", geometry.Point{1, 2, 3}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if err := tr.InsertPoint("nan", geometry.NaNPoint(2)); !errors.Is(err, domain.ErrMalformedValue) {
		t.Fatalf("expected ErrMalformedValue, got %v", err)
	}
	if _, err := tr.Search(geometry.Point{1}, 1); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch on query, got %v", err)
	}
	if _, err := New(0, 4); err == nil {
		t.Fatal("expected error for zero dimension")
	}
	if _, err := BulkLoad(2, 4, 5, nil); err == nil {
		t.Fatal("expected error for out-of-range axis")
	}
}

func TestBrowse_Incremental(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	entries := randomPoints(rng, 50, 2)
	tr, err := BulkLoad(2, 4, 1, entries)
	if err != nil {
		t.Fatalf("BulkLoad: %v", err)
	}
	b, err := tr.Browse(geometry.Point{25, 75}.Bounds())
	if err != nil {
		t.Fatalf("Browse: %v", err)
	}
	seen := 0
	last := -1.0
	for {
		n, ok := b.Next()
		if !ok {
			break
		}
		if n.Distance < last {
			t.Fatalf("browse order broken at %d", seen)
		}
		last = n.Distance
		seen++
	}
	if seen != len(entries) {
		t.Fatalf("browsed %d entries, want %d", seen, len(entries))
	}
}

func TestSearchFunc_WeightedAxes(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	entries := randomPoints(rng, 120, 2)
	tr, err := BulkLoad(2, 6, 0, entries)
	if err != nil {
		t.Fatalf("BulkLoad: %v", err)
	}

	// Axis 0 counts ten times as much as axis 1.
	gap := func(q, r geometry.Rectangle, i int) float64 {
		switch {
		case q.Max[i] < r.Min[i]:
			return r.Min[i] - q.Max[i]
		case r.Max[i] < q.Min[i]:
			return q.Min[i] - r.Max[i]
		}
		return 0
	}
	dist := func(q, r geometry.Rectangle) float64 { return 10*gap(q, r, 0) + gap(q, r, 1) }

	q := geometry.Point{40, 60}
	got, err := tr.SearchFunc(q, 8, dist)
	if err != nil {
		t.Fatalf("SearchFunc: %v", err)
	}

	want := make([]float64, len(entries))
	for i, e := range entries {
		want[i] = dist(q.Bounds(), e.Rect)
	}
	sort.Float64s(want)
	for i := range got {
		if math.Abs(got[i].Distance-want[i]) > 1e-9 {
			t.Fatalf("result %d: got distance %f, want %f", i, got[i].Distance, want[i])
		}
	}
}
