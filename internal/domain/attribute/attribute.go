// Package attribute defines the attribute kinds a search can rank on and the
// distance measure each kind uses.
package attribute

import (
	"context"
	"fmt"
	"math"

	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/geometry"
)

// Kind is the operation applied to an attribute.
type Kind string

// Attribute kinds.
const (
	Numerical   Kind = "numerical"
	Categorical Kind = "categorical"
	Spatial     Kind = "spatial"
	// Pivot compares token sets by Euclidean distance of their embeddings.
	Pivot Kind = "pivot"
)

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	return k == Numerical || k == Categorical || k == Spatial || k == Pivot
}

// Metric selects the distance used by spatial attributes.
type Metric string

// Spatial metrics.
const (
	Euclidean Metric = "euclidean"
	// Haversine treats points as lon/lat degrees and measures meters.
	Haversine Metric = "haversine"
)

// Query is one attribute's part of a search request.
type Query struct {
	Name  string
	Kind  Kind
	Value string
	// Weight is the attribute's share of the aggregate score. Zero excludes it.
	Weight float64
	// Decay overrides the default decay factor when positive.
	Decay float64
	// Columns optionally restates the column grouping of a composite attribute
	// (e.g. lon, lat). When set it must match the mounted columns.
	Columns []string
}

// Validate checks the parts of a query that do not depend on mounted attributes.
func (q Query) Validate() error {
	if q.Name == "" {
		return fmt.Errorf("attribute name is required: %w", domain.ErrUnknownAttribute)
	}
	if !q.Kind.IsValid() {
		return domain.NewAttributeError(q.Name,
			fmt.Errorf("unsupported operation %q: %w", q.Kind, domain.ErrInvalidQueryValue))
	}
	if q.Weight < 0 || math.IsNaN(q.Weight) || math.IsInf(q.Weight, 0) {
		return domain.NewAttributeError(q.Name, domain.ErrInvalidWeight)
	}
	if q.Decay < 0 || math.IsNaN(q.Decay) || math.IsInf(q.Decay, 0) {
		return domain.NewAttributeError(q.Name,
			fmt.Errorf("decay must be non-negative: %w", domain.ErrInvalidQueryValue))
	}
	return nil
}

// Value is a parsed attribute value. Only the fields of its kind are set.
type Value struct {
	Number float64
	Tokens []string
	Point  geometry.Point
}

// Embedder maps a token set to a fixed-length vector. An empty or wholly
// unresolvable set yields a vector of NaN.
type Embedder interface {
	Embed(ctx context.Context, tokens []string) []float64
	Dim() int
}

// Measure is the per-kind distance capability, resolved once per attribute.
type Measure interface {
	Kind() Kind
	// Parse converts a connector-native value. Failures wrap domain.ErrMalformedValue.
	Parse(ctx context.Context, raw string) (Value, error)
	// Distance is symmetric and non-negative; NaN when either side is unembeddable.
	Distance(q, v Value) float64
	// ToPoint places a value in pivot space.
	ToPoint(ctx context.Context, v Value) geometry.Point
	// Cutoff is the distance at which similarity drops to zero, or 0 for none.
	Cutoff() float64
}

// Options configure measure construction.
type Options struct {
	Metric   Metric
	Embedder Embedder
}

// NewMeasure returns the measure for kind.
func NewMeasure(kind Kind, opts Options) (Measure, error) {
	switch kind {
	case Numerical:
		return numerical{}, nil
	case Categorical:
		return categorical{embedder: opts.Embedder}, nil
	case Spatial:
		switch opts.Metric {
		case "", Euclidean:
			return spatial{}, nil
		case Haversine:
			return spatial{haversine: true}, nil
		default:
			return nil, fmt.Errorf("unsupported spatial metric %q: %w", opts.Metric, domain.ErrInvalidQueryValue)
		}
	case Pivot:
		if opts.Embedder == nil {
			return nil, fmt.Errorf("pivot attribute needs a vocabulary: %w", domain.ErrInvalidQueryValue)
		}
		return pivot{embedder: opts.Embedder}, nil
	default:
		return nil, fmt.Errorf("unsupported operation %q: %w", kind, domain.ErrInvalidQueryValue)
	}
}
