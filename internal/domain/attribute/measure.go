package attribute

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/geo"
	"github.com/kailas-cloud/simsearch/internal/domain/geometry"
)

type numerical struct{}

func (numerical) Kind() Kind      { return Numerical }
func (numerical) Cutoff() float64 { return 0 }

func (numerical) Parse(_ context.Context, raw string) (Value, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q is not a number", domain.ErrMalformedValue, raw)
	}
	return Value{Number: f}, nil
}

func (numerical) Distance(q, v Value) float64 { return math.Abs(q.Number - v.Number) }

func (numerical) ToPoint(_ context.Context, v Value) geometry.Point {
	return geometry.Point{v.Number}
}

// categorical compares token sets by Jaccard distance. Sets sharing no token
// are at distance 1, which maps to zero similarity.
type categorical struct {
	embedder Embedder
}

func (categorical) Kind() Kind      { return Categorical }
func (categorical) Cutoff() float64 { return 1 }

func (categorical) Parse(_ context.Context, raw string) (Value, error) {
	return Value{Tokens: Tokenize(raw)}, nil
}

func (categorical) Distance(q, v Value) float64 { return Jaccard(q.Tokens, v.Tokens) }

func (c categorical) ToPoint(ctx context.Context, v Value) geometry.Point {
	if c.embedder == nil {
		return nil
	}
	return c.embedder.Embed(ctx, v.Tokens)
}

type spatial struct {
	haversine bool
}

func (spatial) Kind() Kind      { return Spatial }
func (spatial) Cutoff() float64 { return 0 }

func (s spatial) Parse(_ context.Context, raw string) (Value, error) {
	p, err := geo.ParsePoint(raw)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %w", domain.ErrMalformedValue, err)
	}
	if s.haversine && (len(p) != 2 || !geo.ValidateCoordinates(p[0], p[1])) {
		return Value{}, fmt.Errorf("%w: %q is not a lon/lat pair", domain.ErrMalformedValue, raw)
	}
	return Value{Point: p}, nil
}

func (s spatial) Distance(q, v Value) float64 {
	if len(q.Point) != len(v.Point) {
		return math.NaN()
	}
	if s.haversine {
		return geo.Haversine(q.Point[0], q.Point[1], v.Point[0], v.Point[1])
	}
	return geometry.Distance(q.Point, v.Point)
}

func (s spatial) ToPoint(_ context.Context, v Value) geometry.Point {
	if s.haversine {
		return geo.ToECEF(v.Point[0], v.Point[1])
	}
	return v.Point
}

// pivot embeds token sets once at parse time and compares the vectors.
type pivot struct {
	embedder Embedder
}

func (pivot) Kind() Kind      { return Pivot }
func (pivot) Cutoff() float64 { return 0 }

func (p pivot) Parse(ctx context.Context, raw string) (Value, error) {
	tokens := Tokenize(raw)
	return Value{Tokens: tokens, Point: p.embedder.Embed(ctx, tokens)}, nil
}

func (pivot) Distance(q, v Value) float64 {
	if len(q.Point) != len(v.Point) || q.Point.ContainsNaN() || v.Point.ContainsNaN() {
		return math.NaN()
	}
	return geometry.Distance(q.Point, v.Point)
}

func (pivot) ToPoint(_ context.Context, v Value) geometry.Point { return v.Point }

// Tokenize splits a keyword list on commas, semicolons and whitespace.
func Tokenize(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

// Jaccard returns 1 - |A∩B|/|A∪B| over case-folded tokens. Two empty sets are identical.
func Jaccard(a, b []string) float64 {
	set := make(map[string]uint8, len(a)+len(b))
	for _, t := range a {
		set[strings.ToLower(t)] |= 1
	}
	for _, t := range b {
		set[strings.ToLower(t)] |= 2
	}
	if len(set) == 0 {
		return 0
	}
	shared := 0
	for _, m := range set {
		if m == 3 {
			shared++
		}
	}
	return 1 - float64(shared)/float64(len(set))
}
