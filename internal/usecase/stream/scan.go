package stream

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/kailas-cloud/simsearch/internal/db"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
)

// Querier runs a source query.
type Querier interface {
	ExecuteQuery(ctx context.Context, q *db.Query) (db.Rows, error)
}

// Scan reads every row of q, scores it against query and returns the rows
// sorted by distance, then identifier. Rows without a usable value are skipped.
func Scan(
	ctx context.Context, src Querier, q db.Query, m attribute.Measure, query attribute.Value,
) (Stream, error) {
	q.OrderBy = nil
	rows, err := src.ExecuteQuery(ctx, &q)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", q.Table, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		e, ok := score(ctx, rows.Row(), m, query)
		if ok {
			entries = append(entries, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", q.Table, err)
	}

	SortEntries(entries)
	return Slice(entries), nil
}

// SortEntries orders entries by distance, then identifier.
func SortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func score(ctx context.Context, row db.Row, m attribute.Measure, query attribute.Value) (Entry, bool) {
	raw := row.Value()
	if raw == "" {
		return Entry{}, false
	}
	v, err := m.Parse(ctx, raw)
	if err != nil {
		return Entry{}, false
	}
	d := m.Distance(query, v)
	if math.IsNaN(d) {
		return Entry{}, false
	}
	return Entry{ID: row.Key, Distance: d, Value: v}, true
}

// Ordered streams a numerical column straight from a source that can sort by
// |column - target|. It returns db.ErrOrderingUnsupported when the source
// cannot, so callers fall back to Scan.
func Ordered(
	ctx context.Context, src Querier, q db.Query, m attribute.Measure, query attribute.Value,
) (Stream, error) {
	if m.Kind() != attribute.Numerical || len(q.ValueColumns) != 1 {
		return nil, db.ErrOrderingUnsupported
	}
	q.OrderBy = &db.Ordering{Column: q.ValueColumns[0], Target: query.Number}
	rows, err := src.ExecuteQuery(ctx, &q)
	if err != nil {
		if errors.Is(err, db.ErrOrderingUnsupported) {
			return nil, err
		}
		return nil, fmt.Errorf("ordered %s: %w", q.Table, err)
	}
	return &rowStream{rows: rows, m: m, query: query}, nil
}

type rowStream struct {
	rows  db.Rows
	m     attribute.Measure
	query attribute.Value
}

func (s *rowStream) Next(ctx context.Context) (Entry, bool, error) {
	for s.rows.Next() {
		if e, ok := score(ctx, s.rows.Row(), s.m, s.query); ok {
			return e, true, nil
		}
	}
	if err := s.rows.Err(); err != nil {
		return Entry{}, false, err
	}
	return Entry{}, false, ctx.Err()
}

func (s *rowStream) Close() error { return s.rows.Close() }
