package rtree

import (
	"fmt"

	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/geometry"
)

// Neighbor is one nearest-neighbor hit.
type Neighbor struct {
	ID       string
	Rect     geometry.Rectangle
	Distance float64
}

// DistanceFunc measures a query box against a stored box. It must never
// exceed the distance from the query to anything inside the stored box,
// or best-first order breaks.
type DistanceFunc func(q, r geometry.Rectangle) float64

// Search returns the k entries nearest to q in ascending distance order.
// Fewer than k are returned when the tree holds fewer entries.
func (t *Tree) Search(q geometry.Point, k int) ([]Neighbor, error) {
	return t.SearchFunc(q, k, geometry.MinDist)
}

// SearchFunc is Search under a caller-supplied distance.
func (t *Tree) SearchFunc(q geometry.Point, k int, dist DistanceFunc) ([]Neighbor, error) {
	b, err := t.BrowseFunc(q.Bounds(), dist)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	out := make([]Neighbor, 0, min(k, t.size))
	for len(out) < k {
		n, ok := b.Next()
		if !ok {
			break
		}
		out = append(out, n)
	}
	return out, nil
}

// Browser walks the tree in ascending mindist order, one entry per Next call.
// It never mutates the tree, so many browsers may run over one tree at once.
type Browser struct {
	t     *Tree
	q     geometry.Rectangle
	dist  DistanceFunc
	queue queue
}

// Browse starts a best-first traversal from q.
func (t *Tree) Browse(q geometry.Rectangle) (*Browser, error) {
	return t.BrowseFunc(q, geometry.MinDist)
}

// BrowseFunc starts a best-first traversal from q ordered by dist.
func (t *Tree) BrowseFunc(q geometry.Rectangle, dist DistanceFunc) (*Browser, error) {
	if q.Dim() != t.dim {
		return nil, fmt.Errorf("rtree: query has %d dimensions, index has %d: %w", q.Dim(), t.dim, domain.ErrDimensionMismatch)
	}
	b := &Browser{t: t, q: q, dist: dist}
	if t.size > 0 {
		b.queue.push(item{dist: dist(q, t.nodes[t.root].mbr), node: t.root})
	}
	return b, nil
}

// Next returns the next closest entry, or false when the tree is exhausted.
// Any node still queued has mindist >= the returned distance, so the order is exact.
func (b *Browser) Next() (Neighbor, bool) {
	for {
		it, ok := b.queue.pop()
		if !ok {
			return Neighbor{}, false
		}
		if it.isEntry {
			return Neighbor{ID: it.entry.ID, Rect: it.entry.Rect, Distance: it.dist}, true
		}
		n := &b.t.nodes[it.node]
		if n.leaf {
			for _, e := range n.entries {
				b.queue.push(item{dist: b.dist(b.q, e.Rect), isEntry: true, entry: e})
			}
			continue
		}
		for _, c := range n.children {
			b.queue.push(item{dist: b.dist(b.q, b.t.nodes[c].mbr), node: c})
		}
	}
}
