// Package rtree implements an in-memory R-tree over points and rectangles with
// best-first nearest-neighbor search.
//
// Nodes live in a flat arena and reference each other by index, so splits can
// rewire parents without pointer cycles. A tree is built once and then searched;
// Insert must not run concurrently with searches.
package rtree

import (
	"fmt"

	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/geometry"
)

// DefaultMaxEntries is the default node fan-out.
const DefaultMaxEntries = 16

const noParent = -1

// Entry is a leaf record: an identifier and its geometry.
type Entry struct {
	ID   string
	Rect geometry.Rectangle
}

// Bounds implements geometry.Bounded.
func (e Entry) Bounds() geometry.Rectangle { return e.Rect }

// PointEntry builds a leaf entry from a point.
func PointEntry(id string, p geometry.Point) Entry {
	return Entry{ID: id, Rect: p.Bounds()}
}

type node struct {
	leaf     bool
	parent   int
	mbr      geometry.Rectangle
	entries  []Entry // leaf only
	children []int   // internal only
}

// Tree is an R-tree with fixed dimension and fan-out.
type Tree struct {
	dim        int
	maxEntries int
	minEntries int
	nodes      []node
	root       int
	size       int
}

// New creates an empty tree. maxEntries <= 0 selects DefaultMaxEntries.
func New(dim, maxEntries int) (*Tree, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("rtree: dimension must be positive, got %d", dim)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxEntries < 2 {
		return nil, fmt.Errorf("rtree: fan-out must be at least 2, got %d", maxEntries)
	}
	t := &Tree{
		dim:        dim,
		maxEntries: maxEntries,
		minEntries: minFill(maxEntries),
	}
	t.root = t.alloc(node{leaf: true, parent: noParent})
	return t, nil
}

func minFill(maxEntries int) int {
	m := maxEntries * 2 / 5
	if m < 1 {
		m = 1
	}
	return m
}

// Dim returns the dimension of every indexed geometry.
func (t *Tree) Dim() int { return t.dim }

// Len returns the number of indexed entries.
func (t *Tree) Len() int { return t.size }

// Height returns the number of levels, counting the root leaf as 1.
func (t *Tree) Height() int {
	h := 1
	for n := t.root; !t.nodes[n].leaf; n = t.nodes[n].children[0] {
		h++
	}
	return h
}

// Bounds returns the MBR of the whole tree and false when the tree is empty.
func (t *Tree) Bounds() (geometry.Rectangle, bool) {
	if t.size == 0 {
		return geometry.Rectangle{}, false
	}
	return t.nodes[t.root].mbr, true
}

// InsertPoint indexes a point under id.
func (t *Tree) InsertPoint(id string, p geometry.Point) error {
	return t.Insert(PointEntry(id, p))
}

// Insert indexes one entry, splitting overflowing nodes up to the root.
func (t *Tree) Insert(e Entry) error {
	if err := t.check(e.Rect); err != nil {
		return err
	}

	leaf := t.chooseLeaf(e.Rect)
	t.nodes[leaf].entries = append(t.nodes[leaf].entries, e)
	for n := leaf; n != noParent; n = t.nodes[n].parent {
		t.extend(n, e.Rect)
	}
	t.size++

	for n := leaf; n != noParent; {
		if t.count(n) <= t.maxEntries {
			break
		}
		n = t.split(n)
	}
	return nil
}

func (t *Tree) check(r geometry.Rectangle) error {
	if r.Dim() != t.dim {
		return fmt.Errorf("rtree: entry has %d dimensions, index has %d: %w", r.Dim(), t.dim, domain.ErrDimensionMismatch)
	}
	if geometry.Point(r.Min).ContainsNaN() || geometry.Point(r.Max).ContainsNaN() {
		return fmt.Errorf("rtree: entry has NaN coordinates: %w", domain.ErrMalformedValue)
	}
	return nil
}

func (t *Tree) alloc(n node) int {
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

func (t *Tree) count(n int) int {
	if t.nodes[n].leaf {
		return len(t.nodes[n].entries)
	}
	return len(t.nodes[n].children)
}

func (t *Tree) extend(n int, r geometry.Rectangle) {
	if t.nodes[n].mbr.Dim() == 0 {
		t.nodes[n].mbr = geometry.Union(r, r)
		return
	}
	t.nodes[n].mbr = geometry.Union(t.nodes[n].mbr, r)
}

// chooseLeaf descends along the child needing the least area enlargement,
// breaking ties by smaller area and then by position.
func (t *Tree) chooseLeaf(r geometry.Rectangle) int {
	n := t.root
	for !t.nodes[n].leaf {
		best := -1
		var bestEnl, bestArea float64
		for _, c := range t.nodes[n].children {
			mbr := t.nodes[c].mbr
			enl := mbr.Enlargement(r)
			area := mbr.Area()
			if best == -1 || enl < bestEnl || (enl == bestEnl && area < bestArea) {
				best, bestEnl, bestArea = c, enl, area
			}
		}
		n = best
	}
	return n
}

// childRef lets internal-node children take part in the generic split.
type childRef struct {
	idx int
	mbr geometry.Rectangle
}

func (c childRef) Bounds() geometry.Rectangle { return c.mbr }

// split divides an overflowing node in two and returns the parent that received
// the new sibling (which may itself overflow).
func (t *Tree) split(n int) int {
	sibling := t.alloc(node{leaf: t.nodes[n].leaf, parent: t.nodes[n].parent})

	if t.nodes[n].leaf {
		a, b := quadraticSplit(t.nodes[n].entries, t.minEntries)
		t.nodes[n].entries = a.Entries()
		t.nodes[n].mbr = a.MBR()
		t.nodes[sibling].entries = b.Entries()
		t.nodes[sibling].mbr = b.MBR()
	} else {
		refs := make([]childRef, len(t.nodes[n].children))
		for i, c := range t.nodes[n].children {
			refs[i] = childRef{idx: c, mbr: t.nodes[c].mbr}
		}
		a, b := quadraticSplit(refs, t.minEntries)
		t.nodes[n].children = childIndexes(a.Entries())
		t.nodes[n].mbr = a.MBR()
		t.nodes[sibling].children = childIndexes(b.Entries())
		t.nodes[sibling].mbr = b.MBR()
		for _, c := range t.nodes[sibling].children {
			t.nodes[c].parent = sibling
		}
	}

	parent := t.nodes[n].parent
	if parent == noParent {
		root := t.alloc(node{
			parent:   noParent,
			children: []int{n, sibling},
			mbr:      geometry.Union(t.nodes[n].mbr, t.nodes[sibling].mbr),
		})
		t.nodes[n].parent = root
		t.nodes[sibling].parent = root
		t.root = root
		return noParent
	}
	t.nodes[parent].children = append(t.nodes[parent].children, sibling)
	return parent
}

func childIndexes(refs []childRef) []int {
	out := make([]int, len(refs))
	for i, r := range refs {
		out[i] = r.idx
	}
	return out
}
