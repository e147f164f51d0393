package rtree

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/kailas-cloud/simsearch/internal/domain/geometry"
)

// BulkLoad builds a tree from entries in one pass: entries are sorted by the
// center of their box along axis and packed into full leaves, and each upper
// level packs the level below the same way. All leaves share one depth.
func BulkLoad(dim, maxEntries, axis int, entries []Entry) (*Tree, error) {
	t, err := New(dim, maxEntries)
	if err != nil {
		return nil, err
	}
	if axis < 0 || axis >= dim {
		return nil, fmt.Errorf("rtree: sort axis %d out of range [0,%d)", axis, dim)
	}
	if len(entries) == 0 {
		return t, nil
	}
	for _, e := range entries {
		if err := t.check(e.Rect); err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.ID, err)
		}
	}

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		if c := cmp.Compare(center(a.Rect, axis), center(b.Rect, axis)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	t.nodes = t.nodes[:0]
	var level []int
	for _, chunk := range packs(len(sorted), t.maxEntries, t.minEntries) {
		g := geometry.NewGroup(sorted[chunk[0]:chunk[1]]...)
		level = append(level, t.alloc(node{
			leaf:    true,
			parent:  noParent,
			entries: g.Entries(),
			mbr:     g.MBR(),
		}))
	}

	for len(level) > 1 {
		var next []int
		for _, chunk := range packs(len(level), t.maxEntries, t.minEntries) {
			children := slices.Clone(level[chunk[0]:chunk[1]])
			mbr := t.nodes[children[0]].mbr
			for _, c := range children[1:] {
				mbr = geometry.Union(mbr, t.nodes[c].mbr)
			}
			p := t.alloc(node{parent: noParent, children: children, mbr: mbr})
			for _, c := range children {
				t.nodes[c].parent = p
			}
			next = append(next, p)
		}
		level = next
	}

	t.root = level[0]
	t.size = len(sorted)
	return t, nil
}

// packs cuts n items into [start,end) chunks of size maxEntries, evening out the
// last two chunks when the tail would be underfull.
func packs(n, maxEntries, minEntries int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += maxEntries {
		out = append(out, [2]int{start, min(start+maxEntries, n)})
	}
	if len(out) > 1 {
		last := out[len(out)-1]
		if last[1]-last[0] < minEntries {
			prev := out[len(out)-2]
			total := last[1] - prev[0]
			mid := prev[0] + total/2
			out[len(out)-2] = [2]int{prev[0], mid}
			out[len(out)-1] = [2]int{mid, last[1]}
		}
	}
	return out
}

func center(r geometry.Rectangle, axis int) float64 {
	return (r.Min[axis] + r.Max[axis]) / 2
}
