package rank

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/domain/search/request"
	"github.com/kailas-cloud/simsearch/internal/domain/search/result"
	"github.com/kailas-cloud/simsearch/internal/domain/similarity"
	logpkg "github.com/kailas-cloud/simsearch/internal/logger"
	"github.com/kailas-cloud/simsearch/internal/metrics"
)

// searchPivot answers the request with one weighted kNN query in the pivot
// space. The query must name exactly the space's attributes. A result scores
// the weighted mean of its per-attribute similarities; an attribute whose
// query value has no embedding is degraded and left out.
func (e *Engine) searchPivot(ctx context.Context, req request.Request) (*result.Response, error) {
	space, err := e.catalog.Pivot()
	if err != nil {
		return nil, err
	}

	names := space.Attributes()
	queries := req.Attributes()
	if len(queries) != len(names) {
		return nil, fmt.Errorf("pivot space spans %v, query names %d attributes: %w",
			names, len(queries), domain.ErrDimensionMismatch)
	}
	byName := make(map[string]attribute.Query, len(queries))
	for _, q := range queries {
		byName[q.Name] = q
	}

	values := make([]attribute.Value, len(names))
	weights := make([]float64, len(names))
	decays := make([]float64, len(names))
	var total float64
	for i, name := range names {
		q, ok := byName[name]
		if !ok {
			return nil, domain.NewAttributeError(name, fmt.Errorf("missing from pivot query: %w", domain.ErrDimensionMismatch))
		}
		a, err := e.catalog.Attribute(name)
		if err != nil {
			return nil, err
		}
		if a.Measure().Kind() != q.Kind {
			return nil, domain.NewAttributeError(name, fmt.Errorf("attribute is %s, queried as %s: %w",
				a.Measure().Kind(), q.Kind, domain.ErrInvalidQueryValue))
		}
		if err := a.CheckColumns(q.Columns); err != nil {
			return nil, err
		}
		v, err := a.Measure().Parse(ctx, q.Value)
		if err != nil {
			return nil, domain.NewAttributeError(name, fmt.Errorf("%w: %w", domain.ErrInvalidQueryValue, err))
		}
		values[i] = v
		weights[i] = q.Weight
		decays[i] = q.Decay
		if decays[i] <= 0 {
			decays[i] = e.cfg.Decay
		}
		total += q.Weight
	}
	if total == 0 {
		return nil, fmt.Errorf("every attribute has zero weight: %w", domain.ErrInvalidWeight)
	}

	parts, err := space.Embed(ctx, values)
	if err != nil {
		return nil, err
	}
	log := logpkg.FromContextOr(ctx, e.logger)
	var degraded []result.Degradation
	active := 0
	for i, p := range parts {
		if weights[i] == 0 {
			continue
		}
		if p == nil {
			weights[i] = 0
			degraded = append(degraded, result.Degradation{
				Attribute: names[i],
				Reason:    "query value has no embedding in the pivot space",
			})
			metrics.DegradedAttributesTotal.WithLabelValues(names[i]).Inc()
			log.Warn("Attribute degraded", zap.String("attribute", names[i]), zap.String("reason", "no embedding"))
			continue
		}
		active++
	}
	if active == 0 {
		return &result.Response{Degraded: degraded}, nil
	}

	hits, err := space.Search(parts, weights, req.TopK())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]result.Result, len(hits))
	for i, h := range hits {
		sims := make(map[string]float64, active)
		var score, sum float64
		for j, d := range h.Parts {
			if weights[j] == 0 {
				continue
			}
			s := similarity.Decay(decays[j], d)
			sims[names[j]] = s
			score += weights[j] * s
			sum += weights[j]
		}
		results[i] = result.New(h.ID, score/sum, h.Distance, true, sims)
	}
	// Decay bends distances differently per attribute, so the similarity
	// order can differ slightly from the kNN order.
	slices.SortStableFunc(results, func(a, b result.Result) int {
		if c := cmp.Compare(b.Score(), a.Score()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	return &result.Response{
		Results:  results,
		Degraded: degraded,
		Stats:    result.Stats{Rounds: 1, SortedAccesses: len(hits)},
	}, nil
}
