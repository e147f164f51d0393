package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/kailas-cloud/simsearch/internal/db"
	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/rtree"
	"github.com/kailas-cloud/simsearch/internal/usecase/finder"
	"github.com/kailas-cloud/simsearch/internal/usecase/stream"
)

// Spec describes an attribute to mount.
type Spec struct {
	Name         string
	Kind         attribute.Kind
	Source       string
	Table        string
	KeyColumn    string
	ValueColumns []string
	Metric       attribute.Metric
	// Ingest loads all values into memory at mount. Spatial and pivot
	// attributes are then served from an R-tree.
	Ingest bool
}

// Info summarizes a mounted attribute.
type Info struct {
	Name     string
	Kind     attribute.Kind
	Source   string
	Ingested bool
	Indexed  bool
	Entries  int
}

// Attribute is a mounted attribute. It is immutable once mounted, so a search
// may keep using it after it is removed from the catalog.
type Attribute struct {
	spec    Spec
	measure attribute.Measure
	conn    db.Connector

	raw    memorySource
	values map[string]attribute.Value
	index  *rtree.Tree
	// dim is the point dimension of an in-situ spatial attribute, 0 when unknown.
	dim int
}

// sampleRows bounds how many rows a mount reads to learn a point dimension.
const sampleRows = 16

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.spec.Name }

// Measure returns the attribute's distance measure.
func (a *Attribute) Measure() attribute.Measure { return a.measure }

// Info summarizes the attribute.
func (a *Attribute) Info() Info {
	return Info{
		Name:     a.spec.Name,
		Kind:     a.spec.Kind,
		Source:   a.spec.Source,
		Ingested: a.values != nil,
		Indexed:  a.index != nil,
		Entries:  len(a.values),
	}
}

func (a *Attribute) query() db.Query {
	return db.Query{Table: a.spec.Table, KeyColumn: a.spec.KeyColumn, ValueColumns: a.spec.ValueColumns}
}

// CheckQuery rejects query values that cannot be compared with the stored values.
func (a *Attribute) CheckQuery(ctx context.Context, q attribute.Value) error {
	if a.index == nil {
		if a.dim > 0 && q.Point != nil && q.Point.Dim() != a.dim {
			return domain.NewAttributeError(a.spec.Name, fmt.Errorf("query has %d dimensions, values have %d: %w",
				q.Point.Dim(), a.dim, domain.ErrDimensionMismatch))
		}
		return nil
	}
	p := a.measure.ToPoint(ctx, q)
	if p.ContainsNaN() {
		return nil
	}
	if p.Dim() != a.index.Dim() {
		return domain.NewAttributeError(a.spec.Name, fmt.Errorf("query has %d dimensions, index has %d: %w",
			p.Dim(), a.index.Dim(), domain.ErrDimensionMismatch))
	}
	return nil
}

// CheckColumns rejects a query column grouping that differs from the mounted one.
// An empty grouping accepts the mounted columns.
func (a *Attribute) CheckColumns(cols []string) error {
	if len(cols) == 0 || slices.Equal(cols, a.spec.ValueColumns) {
		return nil
	}
	return domain.NewAttributeError(a.spec.Name, fmt.Errorf("query groups columns %v, attribute is mounted over %v: %w",
		cols, a.spec.ValueColumns, domain.ErrInvalidQueryValue))
}

// sampleDim learns the point dimension of an in-situ spatial attribute: the
// column count when a point spans several columns, otherwise the first
// parseable value. It returns 0 when the source yields nothing usable.
func (a *Attribute) sampleDim(ctx context.Context) (int, error) {
	if len(a.spec.ValueColumns) > 1 {
		return len(a.spec.ValueColumns), nil
	}
	q := a.query()
	q.Limit = sampleRows
	rows, err := a.conn.ExecuteQuery(ctx, &q)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()
	for n := 0; n < sampleRows && rows.Next(); n++ {
		if v, err := a.measure.Parse(ctx, rows.Row().Value()); err == nil {
			return v.Point.Dim(), nil
		}
	}
	return 0, rows.Err()
}

// Open starts the attribute's sorted-access stream for q.
func (a *Attribute) Open(ctx context.Context, q attribute.Value) (stream.Stream, error) {
	if a.index != nil {
		return stream.Index(ctx, a.index, a.values, a.measure, q)
	}
	if a.values != nil {
		entries := make([]stream.Entry, 0, len(a.values))
		for id, v := range a.values {
			d := a.measure.Distance(q, v)
			if !math.IsNaN(d) {
				entries = append(entries, stream.Entry{ID: id, Distance: d, Value: v})
			}
		}
		stream.SortEntries(entries)
		return stream.Slice(entries), nil
	}
	s, err := stream.Ordered(ctx, a.conn, a.query(), a.measure, q)
	if errors.Is(err, db.ErrOrderingUnsupported) {
		return stream.Scan(ctx, a.conn, a.query(), a.measure, q)
	}
	return s, err
}

// Finder creates a random-access finder writing through cache.
func (a *Attribute) Finder(cache *finder.ValueCache) *finder.Finder {
	var src finder.Source = a.conn
	if a.raw != nil {
		src = a.raw
	}
	return finder.New(src, a.measure, a.query(), cache)
}

// load reads and parses every value of the attribute from its source.
// Unparseable rows are skipped and counted.
func (a *Attribute) load(ctx context.Context) (memorySource, map[string]attribute.Value, int, error) {
	if a.values != nil {
		return a.raw, a.values, 0, nil
	}
	q := a.query()
	rows, err := a.conn.ExecuteQuery(ctx, &q)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("load %s: %w", a.spec.Name, err)
	}
	defer func() { _ = rows.Close() }()

	raw := make(memorySource)
	values := make(map[string]attribute.Value)
	skipped := 0
	for rows.Next() {
		row := rows.Row()
		s := row.Value()
		if s == "" {
			skipped++
			continue
		}
		v, err := a.measure.Parse(ctx, s)
		if err != nil {
			skipped++
			continue
		}
		raw[row.Key] = s
		values[row.Key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, nil, 0, fmt.Errorf("load %s: %w", a.spec.Name, err)
	}
	return raw, values, skipped, nil
}

// memorySource answers random access for ingested attributes.
type memorySource map[string]string

func (m memorySource) FindSingletonValue(_ context.Context, q *db.Query) (string, error) {
	v, ok := m[q.Key]
	if !ok {
		return "", db.ErrKeyNotFound
	}
	return v, nil
}
