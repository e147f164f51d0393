package geometry

import (
	"fmt"
	"math"
)

// Point is a fixed-dimension coordinate vector. It behaves as a zero-volume Rectangle.
type Point []float64

// NaNPoint returns a point of the given dimension with every coordinate NaN.
// It marks values that could not be embedded.
func NaNPoint(dim int) Point {
	p := make(Point, dim)
	for i := range p {
		p[i] = math.NaN()
	}
	return p
}

// Dim returns the number of coordinates.
func (p Point) Dim() int { return len(p) }

// Bounds returns the degenerate rectangle min == max == p.
func (p Point) Bounds() Rectangle {
	return Rectangle{Min: p, Max: p}
}

// ContainsNaN reports whether any coordinate is NaN.
func (p Point) ContainsNaN() bool {
	for _, c := range p {
		if math.IsNaN(c) {
			return true
		}
	}
	return false
}

// Distance returns the Euclidean distance between two points of equal dimension.
func Distance(p, q Point) float64 {
	if len(p) != len(q) {
		panic(fmt.Sprintf("geometry: dimension mismatch %d != %d", len(p), len(q)))
	}
	var sum float64
	for i := range p {
		d := p[i] - q[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func (p Point) String() string {
	return fmt.Sprintf("%v", []float64(p))
}
