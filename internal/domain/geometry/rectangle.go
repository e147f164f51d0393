// Package geometry provides the bounding-box primitives and distance math shared by
// the spatial index and the pivot space.
//
// All operations are dimension-agnostic but require operands of equal dimension.
// Mixing dimensions is a programming error and panics.
package geometry

import (
	"fmt"
	"math"
)

// Rectangle is an axis-aligned box given by per-dimension minimum and maximum coordinates.
// Invariant: len(Min) == len(Max) and Min[i] <= Max[i].
type Rectangle struct {
	Min []float64
	Max []float64
}

// NewRectangle validates and returns a rectangle. The slices are copied.
func NewRectangle(lo, hi []float64) (Rectangle, error) {
	if len(lo) != len(hi) {
		return Rectangle{}, fmt.Errorf("rectangle bounds have %d and %d dimensions", len(lo), len(hi))
	}
	for i := range lo {
		if lo[i] > hi[i] {
			return Rectangle{}, fmt.Errorf("rectangle min %g > max %g on axis %d", lo[i], hi[i], i)
		}
	}
	return Rectangle{
		Min: append([]float64(nil), lo...),
		Max: append([]float64(nil), hi...),
	}, nil
}

// Dim returns the number of dimensions.
func (r Rectangle) Dim() int { return len(r.Min) }

// Area returns the volume of the box (product of extents). Points have zero area.
func (r Rectangle) Area() float64 {
	if len(r.Min) == 0 {
		return 0
	}
	a := 1.0
	for i := range r.Min {
		a *= r.Max[i] - r.Min[i]
	}
	return a
}

// Margin returns the sum of extents, used to break ties between zero-area boxes.
func (r Rectangle) Margin() float64 {
	var m float64
	for i := range r.Min {
		m += r.Max[i] - r.Min[i]
	}
	return m
}

// Contains reports whether o lies entirely inside r (inclusive bounds).
func (r Rectangle) Contains(o Rectangle) bool {
	mustSameDim(r, o)
	for i := range r.Min {
		if o.Min[i] < r.Min[i] || o.Max[i] > r.Max[i] {
			return false
		}
	}
	return true
}

// Enlargement returns how much r's area grows when it absorbs o.
func (r Rectangle) Enlargement(o Rectangle) float64 {
	return Union(r, o).Area() - r.Area()
}

// Intersects reports whether the boxes overlap on every axis (inclusive bounds).
func Intersects(a, b Rectangle) bool {
	mustSameDim(a, b)
	for i := range a.Min {
		if a.Max[i] < b.Min[i] || b.Max[i] < a.Min[i] {
			return false
		}
	}
	return true
}

// MinDist returns the smallest Euclidean distance between any member of x and any member of r.
// It is zero when the boxes intersect; otherwise the norm of the per-axis gaps.
func MinDist(x, r Rectangle) float64 {
	mustSameDim(x, r)
	var sum float64
	for i := range x.Min {
		var gap float64
		switch {
		case x.Max[i] < r.Min[i]:
			gap = r.Min[i] - x.Max[i]
		case r.Max[i] < x.Min[i]:
			gap = x.Min[i] - r.Max[i]
		}
		sum += gap * gap
	}
	return math.Sqrt(sum)
}

// Union returns the smallest box covering both a and b.
func Union(a, b Rectangle) Rectangle {
	mustSameDim(a, b)
	lo := make([]float64, len(a.Min))
	hi := make([]float64, len(a.Max))
	for i := range a.Min {
		lo[i] = math.Min(a.Min[i], b.Min[i])
		hi[i] = math.Max(a.Max[i], b.Max[i])
	}
	return Rectangle{Min: lo, Max: hi}
}

func mustSameDim(a, b Rectangle) {
	if len(a.Min) != len(b.Min) {
		panic(fmt.Sprintf("geometry: dimension mismatch %d != %d", len(a.Min), len(b.Min)))
	}
}
