// Package rank merges per-attribute candidate streams into one weighted top-k.
package rank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/simsearch/internal/domain/search/request"
	"github.com/kailas-cloud/simsearch/internal/domain/search/result"
	"github.com/kailas-cloud/simsearch/internal/domain/similarity"
	logpkg "github.com/kailas-cloud/simsearch/internal/logger"
	"github.com/kailas-cloud/simsearch/internal/metrics"
	"github.com/kailas-cloud/simsearch/internal/usecase/finder"
)

// Config tunes the engine. Zero values select the defaults below.
type Config struct {
	// Decay is the similarity decay used when a query sets none.
	Decay float64
	// InflationFactor caps the sorted-access rounds at k * InflationFactor.
	InflationFactor int
	// MaxDuration bounds a query's ranking time.
	MaxDuration time.Duration
	// StreamBuffer is the channel capacity between a stream and the consumer.
	StreamBuffer int
	// RandomAccessWorkers sizes the shared random-access pool.
	RandomAccessWorkers int
	// RandomAccessPerRound is how many candidates partial random access resolves per round.
	RandomAccessPerRound int
}

// Defaults.
const (
	DefaultInflationFactor      = 1000
	DefaultMaxDuration          = 60 * time.Second
	DefaultStreamBuffer         = 64
	DefaultRandomAccessWorkers  = 8
	DefaultRandomAccessPerRound = 2
)

func (c Config) withDefaults() Config {
	if c.Decay <= 0 {
		c.Decay = similarity.DefaultDecay
	}
	if c.InflationFactor <= 0 {
		c.InflationFactor = DefaultInflationFactor
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = DefaultStreamBuffer
	}
	if c.RandomAccessWorkers <= 0 {
		c.RandomAccessWorkers = DefaultRandomAccessWorkers
	}
	if c.RandomAccessPerRound <= 0 {
		c.RandomAccessPerRound = DefaultRandomAccessPerRound
	}
	return c
}

// Engine answers top-k searches over the catalog. It is safe for concurrent
// use; every search owns its own candidate table, caches and scales.
type Engine struct {
	catalog Catalog
	pool    *ants.Pool
	cfg     Config
	logger  *zap.Logger
}

// New creates an engine with its random-access worker pool.
func New(c Catalog, cfg Config, logger *zap.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()
	pool, err := ants.NewPool(cfg.RandomAccessWorkers)
	if err != nil {
		return nil, fmt.Errorf("random access pool: %w", err)
	}
	return &Engine{catalog: c, pool: pool, cfg: cfg, logger: logger}, nil
}

// Close releases the worker pool.
func (e *Engine) Close() {
	e.pool.Release()
}

// Search ranks the request's attributes. Configuration problems are returned
// before any source is read; source failures degrade the response instead.
// A canceled context returns ctx.Err() and no partial result.
func (e *Engine) Search(ctx context.Context, req request.Request) (*result.Response, error) {
	start := time.Now()
	m := req.Mode()

	var (
		resp *result.Response
		err  error
	)
	if m == mode.Pivot {
		resp, err = e.searchPivot(ctx, req)
	} else {
		resp, err = e.aggregate(ctx, req)
	}

	elapsed := time.Since(start)
	metrics.SearchDuration.WithLabelValues(string(m)).Observe(elapsed.Seconds())
	metrics.SearchQueriesTotal.WithLabelValues(string(m), status(resp, err)).Inc()
	if err != nil {
		return nil, err
	}

	resp.Stats.Duration = elapsed
	logpkg.FromContextOr(ctx, e.logger).Debug("Search finished",
		zap.String("mode", string(m)),
		zap.Int("k", req.TopK()),
		zap.Int("results", len(resp.Results)),
		zap.Int("rounds", resp.Stats.Rounds),
		zap.Int("sorted_accesses", resp.Stats.SortedAccesses),
		zap.Int("random_accesses", resp.Stats.RandomAccesses),
		zap.Int("probes", resp.Stats.Probes),
		zap.Bool("exact", resp.Exact()),
		zap.Duration("duration", elapsed),
	)
	return resp, nil
}

func status(resp *result.Response, err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case err != nil:
		return "error"
	case resp.Exact():
		return "exact"
	default:
		return "approximate"
	}
}

func (e *Engine) aggregate(ctx context.Context, req request.Request) (*result.Response, error) {
	attrs, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	r := newRun(e, req.Mode(), req.TopK(), attrs)
	r.log = logpkg.FromContextOr(ctx, e.logger)
	stop := r.start(ctx)
	resp, err := r.loop(ctx)
	r.finish(stop)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// prepare resolves and parses every attribute query. Zero-weight attributes
// are validated but not ranked.
func (e *Engine) prepare(ctx context.Context, req request.Request) ([]*attrState, error) {
	var attrs []*attrState
	for _, q := range req.Attributes() {
		a, err := e.catalog.Attribute(q.Name)
		if err != nil {
			return nil, err
		}
		m := a.Measure()
		if m.Kind() != q.Kind {
			return nil, domain.NewAttributeError(q.Name, fmt.Errorf("attribute is %s, queried as %s: %w",
				m.Kind(), q.Kind, domain.ErrInvalidQueryValue))
		}
		v, err := m.Parse(ctx, q.Value)
		if err != nil {
			return nil, domain.NewAttributeError(q.Name, fmt.Errorf("%w: %w", domain.ErrInvalidQueryValue, err))
		}
		if err := a.CheckColumns(q.Columns); err != nil {
			return nil, err
		}
		if err := a.CheckQuery(ctx, v); err != nil {
			return nil, err
		}
		if q.Weight == 0 {
			continue
		}

		decay := q.Decay
		if decay <= 0 {
			decay = e.cfg.Decay
		}
		cache := finder.NewValueCache()
		attrs = append(attrs, &attrState{
			name:    q.Name,
			weight:  q.Weight,
			source:  a,
			measure: m,
			query:   v,
			scorer:  similarity.NewDecayed(decay, m.Cutoff()),
			cache:   cache,
			finder:  a.Finder(cache),
			events:  make(chan event, e.cfg.StreamBuffer),
			last:    1,
		})
	}
	if len(attrs) == 0 {
		return nil, fmt.Errorf("every attribute has zero weight: %w", domain.ErrInvalidWeight)
	}
	return attrs, nil
}
