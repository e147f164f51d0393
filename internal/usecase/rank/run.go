package rank

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/simsearch/internal/domain/search/result"
	"github.com/kailas-cloud/simsearch/internal/metrics"
)

// run is the state of one aggregation query.
type run struct {
	e     *Engine
	log   *zap.Logger
	mode  mode.Mode
	k     int
	attrs []*attrState
	names []string
	table *table

	maxRounds int
	timer     *time.Timer
	expired   bool

	stats    result.Stats
	degraded []result.Degradation
}

func newRun(e *Engine, m mode.Mode, k int, attrs []*attrState) *run {
	weights := make([]float64, len(attrs))
	names := make([]string, len(attrs))
	for i, a := range attrs {
		weights[i] = a.weight
		names[i] = a.name
	}
	return &run{
		e:         e,
		log:       e.logger,
		mode:      m,
		k:         k,
		attrs:     attrs,
		names:     names,
		table:     newTable(weights),
		maxRounds: k * e.cfg.InflationFactor,
		timer:     time.NewTimer(e.cfg.MaxDuration),
	}
}

// loop drives sorted-access rounds until the top-k is proven, every stream
// is drained, or the budget runs out.
func (r *run) loop(ctx context.Context) (*result.Response, error) {
	defer r.timer.Stop()

	for !r.allDone() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.stats.Rounds >= r.maxRounds || r.expired {
			break
		}
		stop, err := r.round(ctx)
		if errors.Is(err, errBudget) {
			break
		}
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.response(), nil
}

func (r *run) round(ctx context.Context) (bool, error) {
	r.stats.Rounds++
	var fresh []uint32
	for i, a := range r.attrs {
		if a.done {
			continue
		}
		e, ok, err := r.pull(ctx, i)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		a.last = a.scorer.Score(e.Distance)
		h, isNew := r.table.handle(e.ID)
		r.table.set(i, h, a.last)
		if isNew {
			fresh = append(fresh, h)
		}
	}

	if r.mode == mode.Threshold {
		if err := r.resolve(ctx, fresh); err != nil {
			return false, err
		}
	}
	ev := r.evaluate()
	if ev.stop || r.mode != mode.PartialRandomAccess {
		return ev.stop, nil
	}
	if err := r.resolve(ctx, r.pick(ev)); err != nil {
		return false, err
	}
	return r.evaluate().stop, nil
}

func (r *run) allDone() bool {
	for _, a := range r.attrs {
		if !a.done {
			return false
		}
	}
	return true
}

// unseen is the best aggregate a candidate no stream has emitted yet can reach.
func (r *run) unseen() float64 {
	t := 0.0
	for _, a := range r.attrs {
		t += a.weight * a.last
	}
	return t
}

func (r *run) last() []float64 {
	out := make([]float64, len(r.attrs))
	for i, a := range r.attrs {
		out[i] = a.last
	}
	return out
}

type evaluation struct {
	ranked []scored // ranking pool, best first
	top    []scored
	bound  float64 // best aggregate anything outside top can reach
	stop   bool
}

// evaluate ranks candidates by lower bound. Sorted-access-only mode ranks
// only complete candidates; the others rank everything seen.
func (r *run) evaluate() evaluation {
	last := r.last()
	var pool []uint32
	if r.mode == mode.Sorted {
		pool = r.table.complete().ToArray()
	} else {
		pool = make([]uint32, r.table.len())
		for h := range pool {
			pool[h] = uint32(h)
		}
	}
	ranked := r.table.rank(pool, last)
	n := min(r.k, len(ranked))
	ev := evaluation{ranked: ranked, top: ranked[:n], bound: r.unseen()}

	inTop := make(map[uint32]struct{}, n)
	for _, s := range ev.top {
		inTop[s.h] = struct{}{}
	}
	for h := range r.table.len() {
		if _, ok := inTop[uint32(h)]; ok {
			continue
		}
		_, up := r.table.bounds(uint32(h), last)
		ev.bound = math.Max(ev.bound, up)
	}

	if r.allDone() {
		ev.stop = true
	} else if n == r.k && n > 0 {
		ev.stop = ev.top[n-1].lower >= ev.bound
	}
	return ev
}

// pick returns up to RandomAccessPerRound incomplete candidates that could
// still change the top-k, highest upper bound first.
func (r *run) pick(ev evaluation) []uint32 {
	threshold := 0.0
	if len(ev.top) == r.k && r.k > 0 {
		threshold = ev.top[r.k-1].lower
	}
	last := r.last()
	var cands []scored
	it := r.table.incomplete().Iterator()
	for it.HasNext() {
		h := it.Next()
		lo, up := r.table.bounds(h, last)
		if up >= threshold {
			cands = append(cands, scored{h: h, lower: lo, upper: up})
		}
	}
	slices.SortFunc(cands, func(a, b scored) int {
		if c := cmp.Compare(b.upper, a.upper); c != 0 {
			return c
		}
		return cmp.Compare(r.table.ids[a.h], r.table.ids[b.h])
	})
	cands = cands[:min(len(cands), r.e.cfg.RandomAccessPerRound)]
	out := make([]uint32, len(cands))
	for i, c := range cands {
		out[i] = c.h
	}
	return out
}

type lookup struct {
	h     uint32
	attr  int
	value valueResult
}

// resolve fills every missing attribute of handles by random access. Lookups
// run on the pool; their outcomes are applied in handle and attribute order.
func (r *run) resolve(ctx context.Context, handles []uint32) error {
	var jobs []lookup
	for _, h := range handles {
		for i := range r.attrs {
			if !r.table.isKnown(i, h) {
				jobs = append(jobs, lookup{h: h, attr: i})
			}
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for j := range jobs {
		job := &jobs[j]
		a := r.attrs[job.attr]
		id := r.table.ids[job.h]
		wg.Add(1)
		task := func() {
			defer wg.Done()
			job.value.v, job.value.found, job.value.err = a.finder.Find(ctx, id)
		}
		if err := r.e.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, job := range jobs {
		if err := r.apply(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) apply(ctx context.Context, job lookup) error {
	a := r.attrs[job.attr]
	r.stats.RandomAccesses++

	sim := 0.0
	switch {
	case job.value.err != nil:
		r.degrade(a, job.value.err)
		metrics.RandomAccessesTotal.WithLabelValues(a.name, "error").Inc()
	case !job.value.found:
		metrics.RandomAccessesTotal.WithLabelValues(a.name, "missing").Inc()
	default:
		metrics.RandomAccessesTotal.WithLabelValues(a.name, "found").Inc()
		d := a.measure.Distance(a.query, job.value.v)
		if r.fixesScale(a, d) {
			if err := r.lookahead(ctx, a); err != nil && !errors.Is(err, errBudget) {
				return err
			}
		}
		sim = a.scorer.Score(d)
	}
	r.table.set(job.attr, job.h, sim)
	return nil
}

// fixesScale reports whether scoring d would fix a still unfixed scale.
func (r *run) fixesScale(a *attrState, d float64) bool {
	if a.scorer.Scaling().Fixed() || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return false
	}
	c := a.measure.Cutoff()
	return c <= 0 || d < c-1e-6
}

// response builds the final ranking. When the rounds stopped before the
// top-k was proven, the list is topped up with the best remaining candidates,
// which are marked approximate.
func (r *run) response() *result.Response {
	ev := r.evaluate()
	top := ev.top
	if len(top) < r.k && r.mode == mode.Sorted {
		seen := make(map[uint32]struct{}, len(top))
		for _, s := range top {
			seen[s.h] = struct{}{}
		}
		var rest []uint32
		for h := range r.table.len() {
			if _, ok := seen[uint32(h)]; !ok {
				rest = append(rest, uint32(h))
			}
		}
		extra := r.table.rank(rest, r.last())
		top = append(slices.Clone(top), extra[:min(len(extra), r.k-len(top))]...)
	}

	complete := r.table.complete()
	results := make([]result.Result, 0, len(top))
	for j, s := range top {
		exact := s.lower >= ev.bound && (j < len(ev.top) || complete.Contains(s.h))
		results = append(results, result.New(
			r.table.ids[s.h], s.lower, 0, exact, r.table.breakdown(s.h, r.names),
		))
	}

	stats := r.stats
	for _, a := range r.attrs {
		stats.Probes += a.finder.Probes()
	}
	return &result.Response{Results: results, Degraded: r.degraded, Stats: stats}
}
