package rank

import (
	"cmp"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// table is the per-query candidate arena. Candidates are addressed by handle,
// the index of their first sighting; similarities live in one flat slice.
// Only the consumer loop touches it.
type table struct {
	weights []float64
	ids     []string
	index   map[string]uint32
	sims    []float64 // sims[h*len(weights)+i]
	known   []*roaring.Bitmap
	closed  []bool
}

func newTable(weights []float64) *table {
	t := &table{
		weights: weights,
		index:   make(map[string]uint32),
		known:   make([]*roaring.Bitmap, len(weights)),
		closed:  make([]bool, len(weights)),
	}
	for i := range t.known {
		t.known[i] = roaring.New()
	}
	return t
}

func (t *table) len() int { return len(t.ids) }

// handle returns the candidate for id, creating it on first sight. A new
// candidate already counts as known (at zero) for every exhausted attribute.
func (t *table) handle(id string) (uint32, bool) {
	if h, ok := t.index[id]; ok {
		return h, false
	}
	h := uint32(len(t.ids))
	t.ids = append(t.ids, id)
	t.index[id] = h
	t.sims = append(t.sims, make([]float64, len(t.weights))...)
	for i, closed := range t.closed {
		if closed {
			t.known[i].Add(h)
		}
	}
	return h, true
}

func (t *table) isKnown(i int, h uint32) bool { return t.known[i].Contains(h) }

// set records a similarity unless the attribute is already known for h.
func (t *table) set(i int, h uint32, sim float64) {
	if t.known[i].Contains(h) {
		return
	}
	t.sims[int(h)*len(t.weights)+i] = sim
	t.known[i].Add(h)
}

func (t *table) sim(i int, h uint32) float64 { return t.sims[int(h)*len(t.weights)+i] }

// exhaust marks attribute i known, at zero, for every candidate still missing it.
func (t *table) exhaust(i int) {
	t.closed[i] = true
	t.known[i].AddRange(0, uint64(len(t.ids)))
}

// complete returns the candidates known on every attribute.
func (t *table) complete() *roaring.Bitmap {
	c := t.known[0].Clone()
	for _, k := range t.known[1:] {
		c.And(k)
	}
	return c
}

// incomplete returns the candidates still missing some attribute.
func (t *table) incomplete() *roaring.Bitmap {
	all := roaring.New()
	all.AddRange(0, uint64(len(t.ids)))
	return roaring.AndNot(all, t.complete())
}

// bounds returns the worst and best aggregate h can still reach; last holds
// each attribute's most recent sorted-access similarity.
func (t *table) bounds(h uint32, last []float64) (lower, upper float64) {
	for i, w := range t.weights {
		if t.known[i].Contains(h) {
			s := w * t.sim(i, h)
			lower += s
			upper += s
		} else {
			upper += w * last[i]
		}
	}
	return lower, upper
}

// breakdown returns the known per-attribute similarities of h.
func (t *table) breakdown(h uint32, names []string) map[string]float64 {
	out := make(map[string]float64, len(names))
	for i, name := range names {
		if t.known[i].Contains(h) {
			out[name] = t.sim(i, h)
		}
	}
	return out
}

type scored struct {
	h            uint32
	lower, upper float64
}

// rank orders handles by lower bound, then identifier.
func (t *table) rank(handles []uint32, last []float64) []scored {
	out := make([]scored, len(handles))
	for j, h := range handles {
		lo, up := t.bounds(h, last)
		out[j] = scored{h: h, lower: lo, upper: up}
	}
	slices.SortFunc(out, func(a, b scored) int {
		if c := cmp.Compare(b.lower, a.lower); c != 0 {
			return c
		}
		return cmp.Compare(t.ids[a.h], t.ids[b.h])
	})
	return out
}
