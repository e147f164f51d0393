package result

import "time"

// Result is one ranked identifier.
type Result struct {
	id         string
	score      float64
	distance   float64
	exact      bool
	attributes map[string]float64
}

// New creates a search result. attributes holds the per-attribute similarity
// breakdown; distance is only meaningful for pivot-space results.
func New(id string, score, distance float64, exact bool, attributes map[string]float64) Result {
	return Result{id: id, score: score, distance: distance, exact: exact, attributes: attributes}
}

// ID returns the entity identifier.
func (r *Result) ID() string { return r.id }

// Score returns the weighted aggregate similarity.
func (r *Result) Score() float64 { return r.score }

// Distance returns the pivot-space distance (0 outside pivot mode).
func (r *Result) Distance() float64 { return r.distance }

// Exact reports whether the bound proved the result belongs to the top-k.
// Results added after the ranking budget ran out are approximate.
func (r *Result) Exact() bool { return r.exact }

// Attributes returns the per-attribute similarities.
func (r *Result) Attributes() map[string]float64 { return r.attributes }

// Degradation records an attribute that contributed less than requested.
type Degradation struct {
	Attribute string
	Reason    string
}

// Stats counts the work one query did.
type Stats struct {
	Rounds         int
	SortedAccesses int
	RandomAccesses int
	// Probes counts random accesses that reached a connector rather than the value cache.
	Probes   int
	Duration time.Duration
}

// Response is the outcome of one search.
type Response struct {
	Results  []Result
	Degraded []Degradation
	Stats    Stats
}

// Exact reports whether every result is exact.
func (r *Response) Exact() bool {
	for i := range r.Results {
		if !r.Results[i].exact {
			return false
		}
	}
	return true
}
