// Package similarity turns raw attribute distances into comparable similarity scores.
package similarity

import "math"

// DefaultDecay is the exponential decay constant used when an attribute sets none.
const DefaultDecay = 0.01

// Scaling normalizes distances by a unit fixed lazily from the first positive
// distance it sees. Exact matches (distance 0) carry no magnitude and never fix it.
// A Scaling belongs to one attribute of one query.
type Scaling struct {
	scale float64
	fixed bool
}

// Apply returns distance / scale, fixing scale = distance on the first positive call.
// Zero always maps to zero.
func (s *Scaling) Apply(distance float64) float64 {
	if !s.fixed {
		if distance <= 0 {
			return 0
		}
		s.scale = distance
		s.fixed = true
	}
	if distance == 0 {
		return 0
	}
	return distance / s.scale
}

// Fixed reports whether the unit has been set.
func (s *Scaling) Fixed() bool { return s.fixed }

// Scale returns the unit, or 0 while unfixed.
func (s *Scaling) Scale() float64 { return s.scale }

// Decayed scores a distance as exp(-lambda * scaled distance), so exact matches
// score 1 and scores fall monotonically with distance.
type Decayed struct {
	scaling Scaling
	lambda  float64
	cutoff  float64
}

// NewDecayed creates a scorer. lambda <= 0 selects DefaultDecay.
// A positive cutoff scores every distance >= cutoff as 0 without touching the
// scale; categorical attributes use it for token sets with nothing in common.
func NewDecayed(lambda, cutoff float64) *Decayed {
	if lambda <= 0 {
		lambda = DefaultDecay
	}
	return &Decayed{lambda: lambda, cutoff: cutoff}
}

// Score maps a raw distance to a similarity in [0, 1].
// NaN and infinite distances score 0.
func (d *Decayed) Score(distance float64) float64 {
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return 0
	}
	if d.cutoff > 0 && distance >= d.cutoff-1e-6 {
		return 0
	}
	return math.Exp(-d.lambda * d.scaling.Apply(distance))
}

// Observe lets a distance fix the scale without scoring it. It applies the
// same guards as Score, so a later Score of the same distance agrees.
func (d *Decayed) Observe(distance float64) {
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return
	}
	if d.cutoff > 0 && distance >= d.cutoff-1e-6 {
		return
	}
	d.scaling.Apply(distance)
}

// Scaling exposes the underlying unit so callers can check whether it is fixed.
func (d *Decayed) Scaling() *Scaling { return &d.scaling }

// Lambda returns the decay constant.
func (d *Decayed) Lambda() float64 { return d.lambda }

// Decay scores a distance that is already in scale units. lambda <= 0
// selects DefaultDecay; NaN and infinite distances score 0.
func Decay(lambda, scaled float64) float64 {
	if math.IsNaN(scaled) || math.IsInf(scaled, 0) {
		return 0
	}
	if lambda <= 0 {
		lambda = DefaultDecay
	}
	return math.Exp(-lambda * scaled)
}
