package rtree

// item is a queued node or leaf entry keyed by its mindist to the query.
type item struct {
	dist    float64
	isEntry bool
	node    int
	entry   Entry
}

// before orders by distance; at equal distance entries come before nodes and
// entries are ordered by ID so results are reproducible.
func (a item) before(b item) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	if a.isEntry != b.isEntry {
		return a.isEntry
	}
	if a.isEntry {
		return a.entry.ID < b.entry.ID
	}
	return a.node < b.node
}

// queue is a value-based binary min-heap.
type queue struct {
	items []item
}

func (q *queue) push(it item) {
	q.items = append(q.items, it)
	q.siftUp(len(q.items) - 1)
}

func (q *queue) pop() (item, bool) {
	n := len(q.items)
	if n == 0 {
		return item{}, false
	}
	top := q.items[0]
	last := q.items[n-1]
	q.items[n-1] = item{}
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	return top, true
}

func (q *queue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.items[i].before(q.items[p]) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *queue) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.items[r].before(q.items[l]) {
			best = r
		}
		if !q.items[best].before(q.items[i]) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
