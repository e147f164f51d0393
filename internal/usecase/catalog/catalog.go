// Package catalog keeps the attributes a search can rank on.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simsearch/internal/db"
	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/domain/geometry"
	"github.com/kailas-cloud/simsearch/internal/rtree"
)

// Catalog holds mounted attributes and the optional pivot space.
// It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	sources map[string]db.Connector
	attrs   map[string]*Attribute
	pivot   *PivotSpace

	embedder attribute.Embedder
	fanout   int
	logger   *zap.Logger
}

// New creates a catalog over named sources. embedder may be nil, in which
// case pivot attributes cannot be mounted. fanout <= 0 selects rtree.DefaultMaxEntries.
func New(sources map[string]db.Connector, embedder attribute.Embedder, fanout int, logger *zap.Logger) *Catalog {
	return &Catalog{
		sources:  sources,
		attrs:    make(map[string]*Attribute),
		embedder: embedder,
		fanout:   fanout,
		logger:   logger,
	}
}

// Mount registers an attribute, ingesting it when spec.Ingest is set.
func (c *Catalog) Mount(ctx context.Context, spec Spec) (Info, error) {
	a, err := c.prepare(spec)
	if err != nil {
		return Info{}, err
	}

	c.mu.RLock()
	_, exists := c.attrs[spec.Name]
	c.mu.RUnlock()
	if exists {
		return Info{}, fmt.Errorf("attribute %q: %w", spec.Name, domain.ErrAlreadyExists)
	}

	if spec.Ingest {
		if err := c.ingest(ctx, a); err != nil {
			return Info{}, err
		}
	} else if spec.Kind == attribute.Spatial {
		dim, err := a.sampleDim(ctx)
		if err != nil {
			c.logger.Warn("Point dimension unknown",
				zap.String("attribute", spec.Name), zap.Error(err))
		}
		a.dim = dim
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.attrs[spec.Name]; ok {
		return Info{}, fmt.Errorf("attribute %q: %w", spec.Name, domain.ErrAlreadyExists)
	}
	c.attrs[spec.Name] = a

	info := a.Info()
	c.logger.Info("Attribute mounted",
		zap.String("attribute", info.Name),
		zap.String("kind", string(info.Kind)),
		zap.String("source", info.Source),
		zap.Bool("ingested", info.Ingested),
		zap.Int("entries", info.Entries),
	)
	return info, nil
}

func (c *Catalog) prepare(spec Spec) (*Attribute, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("attribute name is required: %w", domain.ErrInvalidQueryValue)
	}
	conn, ok := c.sources[spec.Source]
	if !ok {
		return nil, domain.NewAttributeError(spec.Name, fmt.Errorf("source %q: %w", spec.Source, domain.ErrNotFound))
	}
	if len(spec.ValueColumns) == 0 {
		spec.ValueColumns = []string{spec.Name}
	}
	q := db.Query{Table: spec.Table, KeyColumn: spec.KeyColumn, ValueColumns: spec.ValueColumns}
	if err := q.Validate(); err != nil {
		return nil, domain.NewAttributeError(spec.Name, err)
	}
	m, err := attribute.NewMeasure(spec.Kind, attribute.Options{Metric: spec.Metric, Embedder: c.embedder})
	if err != nil {
		return nil, domain.NewAttributeError(spec.Name, err)
	}
	spec.ValueColumns = slices.Clone(spec.ValueColumns)
	return &Attribute{spec: spec, measure: m, conn: conn}, nil
}

func (c *Catalog) ingest(ctx context.Context, a *Attribute) error {
	raw, values, skipped, err := a.load(ctx)
	if err != nil {
		return domain.NewAttributeError(a.spec.Name, err)
	}
	if skipped > 0 {
		c.logger.Warn("Skipped unparseable values",
			zap.String("attribute", a.spec.Name), zap.Int("skipped", skipped))
	}
	a.raw, a.values = raw, values

	if a.spec.Kind != attribute.Spatial && a.spec.Kind != attribute.Pivot {
		return nil
	}
	points := make(map[string]geometry.Point, len(values))
	for id, v := range values {
		points[id] = a.measure.ToPoint(ctx, v)
	}
	tree, dropped, err := c.build(points)
	if err != nil {
		return domain.NewAttributeError(a.spec.Name, err)
	}
	if dropped > 0 {
		c.logger.Warn("Values left out of the index",
			zap.String("attribute", a.spec.Name), zap.Int("dropped", dropped))
	}
	a.index = tree
	return nil
}

// build bulk-loads points, taking the dimension from the first usable point
// in identifier order. Points with NaN or another dimension are dropped.
func (c *Catalog) build(points map[string]geometry.Point) (*rtree.Tree, int, error) {
	ids := make([]string, 0, len(points))
	for id := range points {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	dim := 0
	entries := make([]rtree.Entry, 0, len(ids))
	dropped := 0
	for _, id := range ids {
		p := points[id]
		if p.Dim() == 0 || p.ContainsNaN() || (dim != 0 && p.Dim() != dim) {
			dropped++
			continue
		}
		dim = p.Dim()
		entries = append(entries, rtree.PointEntry(id, p))
	}
	if dim == 0 {
		return nil, dropped, fmt.Errorf("no indexable values: %w", domain.ErrNotFound)
	}
	tree, err := rtree.BulkLoad(dim, c.fanout, 0, entries)
	if err != nil {
		return nil, dropped, fmt.Errorf("build index: %w", err)
	}
	return tree, dropped, nil
}

// Attribute returns a mounted attribute.
func (c *Catalog) Attribute(name string) (*Attribute, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.attrs[name]
	if !ok {
		return nil, fmt.Errorf("attribute %q: %w", name, domain.ErrUnknownAttribute)
	}
	return a, nil
}

// List returns every mounted attribute ordered by name.
func (c *Catalog) List() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Info, 0, len(c.attrs))
	for _, a := range c.attrs {
		out = append(out, a.Info())
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Remove unmounts an attribute. A pivot space built over it is dropped too.
func (c *Catalog) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.attrs[name]; !ok {
		return fmt.Errorf("attribute %q: %w", name, domain.ErrUnknownAttribute)
	}
	delete(c.attrs, name)
	if c.pivot != nil && slices.Contains(c.pivot.attrs, name) {
		c.pivot = nil
		c.logger.Info("Pivot space dropped", zap.String("attribute", name))
	}
	c.logger.Info("Attribute removed", zap.String("attribute", name))
	return nil
}

// Ping checks every source. The map holds one entry per source, nil when healthy.
func (c *Catalog) Ping(ctx context.Context) map[string]error {
	out := make(map[string]error, len(c.sources))
	for name, conn := range c.sources {
		out[name] = conn.Ping(ctx)
	}
	return out
}
