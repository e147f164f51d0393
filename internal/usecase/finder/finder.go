// Package finder resolves single attribute values by identifier.
package finder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/kailas-cloud/simsearch/internal/db"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
)

// Finder resolves one attribute's value for an identifier through a source,
// writing every outcome through the query's value cache.
type Finder struct {
	src      Source
	measure  attribute.Measure
	template db.Query
	cache    *ValueCache
	probes   atomic.Int64
}

// New creates a finder. template names the table and columns; its Key is
// replaced per lookup.
func New(src Source, measure attribute.Measure, template db.Query, cache *ValueCache) *Finder {
	template.OrderBy = nil
	template.Limit = 0
	return &Finder{src: src, measure: measure, template: template, cache: cache}
}

// Find returns the value of id. found is false when the source has no value
// or the value does not parse; err is set only when the source failed.
func (f *Finder) Find(ctx context.Context, id string) (attribute.Value, bool, error) {
	if v, found, ok := f.cache.Get(id); ok {
		return v, found, nil
	}

	f.probes.Add(1)
	q := f.template
	q.Key = id
	raw, err := f.src.FindSingletonValue(ctx, &q)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			f.cache.PutMissing(id)
			return attribute.Value{}, false, nil
		}
		return attribute.Value{}, false, fmt.Errorf("find %q: %w", id, err)
	}

	v, err := f.measure.Parse(ctx, raw)
	if err != nil {
		f.cache.PutMissing(id)
		return attribute.Value{}, false, nil
	}
	f.cache.Put(id, v)
	return v, true, nil
}

// Probes returns how many lookups reached the source.
func (f *Finder) Probes() int { return int(f.probes.Load()) }
