package geometry

// Bounded is anything with a bounding box.
type Bounded interface {
	Bounds() Rectangle
}

// Group is an immutable list of bounded entries plus the MBR covering them.
// Changing membership yields a new Group; the MBR is never mutated in place.
type Group[T Bounded] struct {
	entries []T
	mbr     Rectangle
}

// NewGroup copies entries and computes their MBR. entries must be non-empty.
func NewGroup[T Bounded](entries ...T) Group[T] {
	if len(entries) == 0 {
		panic("geometry: empty group")
	}
	cp := append([]T(nil), entries...)
	mbr := cp[0].Bounds()
	for _, e := range cp[1:] {
		mbr = Union(mbr, e.Bounds())
	}
	return Group[T]{entries: cp, mbr: mbr}
}

// Add returns a new group with e appended.
func (g Group[T]) Add(e T) Group[T] {
	entries := make([]T, len(g.entries), len(g.entries)+1)
	copy(entries, g.entries)
	return Group[T]{
		entries: append(entries, e),
		mbr:     Union(g.mbr, e.Bounds()),
	}
}

// Entries returns the members. Callers must not modify the slice.
func (g Group[T]) Entries() []T { return g.entries }

// Len returns the number of members.
func (g Group[T]) Len() int { return len(g.entries) }

// MBR returns the minimum bounding rectangle of the members.
func (g Group[T]) MBR() Rectangle { return g.mbr }
