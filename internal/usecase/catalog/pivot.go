package catalog

import (
	"context"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/domain/geometry"
	"github.com/kailas-cloud/simsearch/internal/rtree"
)

// PivotSpace indexes entities by the concatenated points of several
// attributes, so one kNN query ranks them on all of them at once.
// Each attribute owns a contiguous run of axes and a scale, the diagonal of
// its coordinate range, so no attribute dominates through its units.
type PivotSpace struct {
	attrs    []string
	measures []attribute.Measure
	offsets  []int // attrs[i] spans axes offsets[i]:offsets[i+1]
	scales   []float64
	tree     *rtree.Tree
}

// PivotHit is one entity found in the pivot space.
type PivotHit struct {
	ID string
	// Distance is the weighted mean of the scaled per-attribute distances.
	Distance float64
	// Parts holds each attribute's scaled distance; NaN where the attribute was left out.
	Parts []float64
}

// Attributes returns the member attributes in coordinate order.
func (p *PivotSpace) Attributes() []string { return slices.Clone(p.attrs) }

// Dim returns the total dimension.
func (p *PivotSpace) Dim() int { return p.tree.Dim() }

// Len returns the number of indexed entities.
func (p *PivotSpace) Len() int { return p.tree.Len() }

// Scale returns the distance unit of the i-th member attribute.
func (p *PivotSpace) Scale(i int) float64 { return p.scales[i] }

// Embed places parsed query values, ordered like Attributes, in each member's
// axes. A value with no embedding comes back nil and must be left out of the search.
func (p *PivotSpace) Embed(ctx context.Context, values []attribute.Value) ([]geometry.Point, error) {
	if len(values) != len(p.measures) {
		return nil, fmt.Errorf("pivot space has %d attributes, got %d: %w",
			len(p.measures), len(values), domain.ErrDimensionMismatch)
	}
	out := make([]geometry.Point, len(values))
	for i, m := range p.measures {
		pt := m.ToPoint(ctx, values[i])
		if pt.Dim() == 0 || pt.ContainsNaN() {
			continue
		}
		if want := p.offsets[i+1] - p.offsets[i]; pt.Dim() != want {
			return nil, domain.NewAttributeError(p.attrs[i], fmt.Errorf("query has %d dimensions, pivot space has %d: %w",
				pt.Dim(), want, domain.ErrDimensionMismatch))
		}
		out[i] = pt
	}
	return out, nil
}

// Search returns the k entities nearest to query under the distance
// Σ wᵢ·dᵢ/scaleᵢ / Σ wᵢ, where dᵢ is the Euclidean distance on the axes of
// attribute i. Attributes with zero weight or a nil query part are left out.
func (p *PivotSpace) Search(query []geometry.Point, weights []float64, k int) ([]PivotHit, error) {
	if len(query) != len(p.attrs) || len(weights) != len(p.attrs) {
		return nil, fmt.Errorf("pivot space has %d attributes, got %d values and %d weights: %w",
			len(p.attrs), len(query), len(weights), domain.ErrDimensionMismatch)
	}
	m := pivotMetric{offsets: p.offsets, scales: p.scales, weights: make([]float64, len(weights))}
	center := make(geometry.Point, p.tree.Dim())
	for i, q := range query {
		if q == nil || weights[i] <= 0 {
			continue
		}
		m.weights[i] = weights[i]
		m.sum += weights[i]
		copy(center[p.offsets[i]:p.offsets[i+1]], q)
	}
	if m.sum == 0 {
		return nil, fmt.Errorf("no pivot attribute left to rank: %w", domain.ErrInvalidWeight)
	}

	hits, err := p.tree.SearchFunc(center, k, m.distance)
	if err != nil {
		return nil, err
	}
	q := center.Bounds()
	out := make([]PivotHit, len(hits))
	for i, h := range hits {
		parts := make([]float64, len(p.attrs))
		for j, w := range m.weights {
			parts[j] = math.NaN()
			if w > 0 {
				parts[j] = m.part(q, h.Rect, j)
			}
		}
		out[i] = PivotHit{ID: h.ID, Distance: h.Distance, Parts: parts}
	}
	return out, nil
}

// pivotMetric is a weighted sum of per-attribute mindists. Each term is a
// lower bound for every point inside the box, so the sum is one too.
type pivotMetric struct {
	offsets []int
	scales  []float64
	weights []float64
	sum     float64
}

func (m pivotMetric) part(q, r geometry.Rectangle, i int) float64 {
	lo, hi := m.offsets[i], m.offsets[i+1]
	d := geometry.MinDist(
		geometry.Rectangle{Min: q.Min[lo:hi], Max: q.Max[lo:hi]},
		geometry.Rectangle{Min: r.Min[lo:hi], Max: r.Max[lo:hi]},
	)
	return d / m.scales[i]
}

func (m pivotMetric) distance(q, r geometry.Rectangle) float64 {
	var d float64
	for i, w := range m.weights {
		if w > 0 {
			d += w * m.part(q, r, i)
		}
	}
	return d / m.sum
}

// BuildPivot indexes every entity that has a usable value for all the named
// attributes. It replaces any previous pivot space.
func (c *Catalog) BuildPivot(ctx context.Context, names []string) (*PivotSpace, error) {
	if len(names) == 0 {
		return nil, domain.ErrNoAttributes
	}
	attrs := make([]*Attribute, len(names))
	for i, name := range names {
		a, err := c.Attribute(name)
		if err != nil {
			return nil, err
		}
		if slices.Contains(names[:i], name) {
			return nil, fmt.Errorf("attribute %q listed twice: %w", name, domain.ErrAlreadyExists)
		}
		attrs[i] = a
	}

	measures := make([]attribute.Measure, len(attrs))
	columns := make([]map[string]attribute.Value, len(attrs))
	for i, a := range attrs {
		_, values, _, err := a.load(ctx)
		if err != nil {
			return nil, domain.NewAttributeError(a.spec.Name, err)
		}
		measures[i] = a.measure
		columns[i] = values
	}

	ids := make([]string, 0, len(columns[0]))
	for id := range columns[0] {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	// The first complete entity in identifier order fixes each attribute's dimension.
	dims := make([]int, len(attrs))
	points := make(map[string]geometry.Point, len(ids))
	parts := make([]geometry.Point, len(attrs))
	for _, id := range ids {
		complete := true
		for i := range columns {
			v, ok := columns[i][id]
			if !ok {
				complete = false
				break
			}
			pt := measures[i].ToPoint(ctx, v)
			if pt.Dim() == 0 || pt.ContainsNaN() || (dims[i] != 0 && pt.Dim() != dims[i]) {
				complete = false
				break
			}
			parts[i] = pt
		}
		if !complete {
			continue
		}
		var pt geometry.Point
		for i, part := range parts {
			dims[i] = part.Dim()
			pt = append(pt, part...)
		}
		points[id] = pt
	}

	tree, _, err := c.build(points)
	if err != nil {
		return nil, fmt.Errorf("pivot space: %w", err)
	}
	offsets := make([]int, len(dims)+1)
	for i, d := range dims {
		offsets[i+1] = offsets[i] + d
	}
	space := &PivotSpace{
		attrs:    slices.Clone(names),
		measures: measures,
		offsets:  offsets,
		scales:   spans(tree, offsets),
		tree:     tree,
	}

	c.mu.Lock()
	c.pivot = space
	c.mu.Unlock()

	c.logger.Info("Pivot space built",
		zap.Strings("attributes", names),
		zap.Int("dim", tree.Dim()),
		zap.Int("entries", tree.Len()),
		zap.Int("dropped", len(ids)-len(points)),
		zap.Float64s("scales", space.scales),
	)
	return space, nil
}

// spans returns the diagonal of each attribute's coordinate range, or 1
// where all entities share one value.
func spans(tree *rtree.Tree, offsets []int) []float64 {
	bounds, _ := tree.Bounds()
	out := make([]float64, len(offsets)-1)
	for i := range out {
		var sum float64
		for ax := offsets[i]; ax < offsets[i+1]; ax++ {
			e := bounds.Max[ax] - bounds.Min[ax]
			sum += e * e
		}
		out[i] = math.Sqrt(sum)
		if out[i] == 0 {
			out[i] = 1
		}
	}
	return out
}

// Pivot returns the current pivot space.
func (c *Catalog) Pivot() (*PivotSpace, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pivot == nil {
		return nil, fmt.Errorf("pivot space: %w", domain.ErrNotFound)
	}
	return c.pivot, nil
}
