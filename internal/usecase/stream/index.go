package stream

import (
	"context"
	"math"

	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/rtree"
)

// Index streams an ingested attribute by browsing its R-tree from the query
// point. The tree holds Measure.ToPoint of every value, which orders
// candidates the same way as the measure's own distance; the reported
// distance is the measure's. An unembeddable query yields an empty stream.
func Index(
	ctx context.Context, tree *rtree.Tree, values map[string]attribute.Value,
	m attribute.Measure, query attribute.Value,
) (Stream, error) {
	p := m.ToPoint(ctx, query)
	if p.ContainsNaN() {
		return Slice(nil), nil
	}
	b, err := tree.Browse(p.Bounds())
	if err != nil {
		return nil, err
	}
	return &indexStream{b: b, values: values, m: m, query: query}, nil
}

type indexStream struct {
	b      *rtree.Browser
	values map[string]attribute.Value
	m      attribute.Measure
	query  attribute.Value
}

func (s *indexStream) Next(ctx context.Context) (Entry, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Entry{}, false, err
		}
		n, ok := s.b.Next()
		if !ok {
			return Entry{}, false, nil
		}
		v := s.values[n.ID]
		d := s.m.Distance(s.query, v)
		if math.IsNaN(d) {
			continue
		}
		return Entry{ID: n.ID, Distance: d, Value: v}, true, nil
	}
}

func (s *indexStream) Close() error { return nil }
