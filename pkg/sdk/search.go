package simsearch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/simsearch/internal/domain/search/request"
)

// SearchBuilder is a fluent builder for multi-attribute searches.
// Weight and Decay apply to the most recently added attribute.
type SearchBuilder struct {
	client  *Client
	queries []attribute.Query
	k       int
	mode    Mode
	err     error
}

func (b *SearchBuilder) add(name string, kind Kind, value string) *SearchBuilder {
	b.queries = append(b.queries, attribute.Query{
		Name:   name,
		Kind:   attribute.Kind(kind),
		Value:  value,
		Weight: 1,
	})
	return b
}

// Numerical ranks by |value - v|.
func (b *SearchBuilder) Numerical(name string, v float64) *SearchBuilder {
	return b.add(name, Numerical, strconv.FormatFloat(v, 'g', -1, 64))
}

// Categorical ranks by Jaccard distance to the token set.
func (b *SearchBuilder) Categorical(name string, tokens ...string) *SearchBuilder {
	return b.add(name, Categorical, strings.Join(tokens, " "))
}

// Spatial ranks by distance to (x, y); lon/lat for haversine attributes.
func (b *SearchBuilder) Spatial(name string, x, y float64) *SearchBuilder {
	return b.add(name, Spatial, strconv.FormatFloat(x, 'g', -1, 64)+","+strconv.FormatFloat(y, 'g', -1, 64))
}

// Pivot ranks by embedding distance to the token set.
func (b *SearchBuilder) Pivot(name string, tokens ...string) *SearchBuilder {
	return b.add(name, Pivot, strings.Join(tokens, " "))
}

// Weight sets the share of the last attribute in the aggregate score.
func (b *SearchBuilder) Weight(w float64) *SearchBuilder {
	if len(b.queries) == 0 {
		b.err = errors.New("simsearch: Weight called before any attribute")
		return b
	}
	b.queries[len(b.queries)-1].Weight = w
	return b
}

// Decay overrides the similarity decay of the last attribute.
func (b *SearchBuilder) Decay(d float64) *SearchBuilder {
	if len(b.queries) == 0 {
		b.err = errors.New("simsearch: Decay called before any attribute")
		return b
	}
	b.queries[len(b.queries)-1].Decay = d
	return b
}

// K sets the number of results. Default: 10.
func (b *SearchBuilder) K(k int) *SearchBuilder {
	b.k = k
	return b
}

// Mode sets the ranking algorithm. Default: threshold.
func (b *SearchBuilder) Mode(m Mode) *SearchBuilder {
	b.mode = m
	return b
}

// Do runs the search.
func (b *SearchBuilder) Do(ctx context.Context) (_ *Result, err error) {
	start := time.Now()
	defer func() { b.client.obs.observe("search", start, err) }()

	if b.err != nil {
		return nil, b.err
	}
	req, err := request.New(b.queries, b.k, mode.Mode(b.mode))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	resp, err := b.client.engine.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	res := resultFromResponse(resp)
	b.client.obs.observeSearch(Mode(req.Mode()), res)
	return res, nil
}
