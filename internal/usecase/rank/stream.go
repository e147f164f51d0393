package rank

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/domain/search/result"
	"github.com/kailas-cloud/simsearch/internal/domain/similarity"
	"github.com/kailas-cloud/simsearch/internal/metrics"
	"github.com/kailas-cloud/simsearch/internal/usecase/finder"
	"github.com/kailas-cloud/simsearch/internal/usecase/stream"
)

// errBudget ends the rounds early once the time budget is spent.
var errBudget = errors.New("ranking budget spent")

type opener interface {
	Open(ctx context.Context, q attribute.Value) (stream.Stream, error)
}

type event struct {
	entry stream.Entry
	err   error
}

// attrState is one attribute's per-query state. The consumer loop owns it.
type attrState struct {
	name    string
	weight  float64
	source  opener
	measure attribute.Measure
	query   attribute.Value
	scorer  *similarity.Decayed
	cache   *finder.ValueCache
	finder  *finder.Finder

	events  chan event
	pending []stream.Entry // read ahead to fix the scale, not yet consumed
	last    float64        // similarity of the last consumed entry
	closed  bool           // no more events will arrive
	done    bool           // closed and pending drained

	degraded bool
}

// start runs one producer per attribute. The returned func stops them and
// waits; it must be called once the consumer is finished. One producer's
// error never cancels the others, so no stream is cut short.
func (r *run) start(ctx context.Context) func() error {
	pctx, cancel := context.WithCancel(ctx)
	var g errgroup.Group
	for _, a := range r.attrs {
		g.Go(func() error {
			return produce(pctx, a.source, a.query, a.events)
		})
	}
	return func() error {
		cancel()
		return g.Wait()
	}
}

// finish stops the producers. Their errors can no longer affect the
// response, so anything but cancellation is only logged.
func (r *run) finish(stop func() error) {
	err := stop()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	r.log.Debug("Producer failed after ranking stopped", zap.Error(err))
}

// produce forwards one stream into out. A failure to close the stream is
// returned, since by then nothing reads out any more.
func produce(ctx context.Context, src opener, q attribute.Value, out chan<- event) (err error) {
	defer close(out)
	s, err := src.Open(ctx, q)
	if err != nil {
		return send(ctx, out, event{err: err})
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close stream: %w", cerr)
		}
	}()

	for {
		e, ok, err := s.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return send(ctx, out, event{err: err})
		}
		if !ok {
			return nil
		}
		if err := send(ctx, out, event{entry: e}); err != nil {
			return err
		}
	}
}

func send(ctx context.Context, out chan<- event, ev event) error {
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pull returns attribute i's next entry in distance order. Once the stream
// is drained the attribute is exhausted: its bound drops to zero and every
// candidate still missing it is settled at zero.
func (r *run) pull(ctx context.Context, i int) (stream.Entry, bool, error) {
	a := r.attrs[i]
	if len(a.pending) > 0 {
		e := a.pending[0]
		a.pending = a.pending[1:]
		return e, true, nil
	}
	if !a.closed {
		e, ok, err := r.receive(ctx, a)
		if err != nil || ok {
			return e, ok, err
		}
	}
	if !a.done {
		a.done = true
		a.last = 0
		r.table.exhaust(i)
	}
	return stream.Entry{}, false, nil
}

func (r *run) receive(ctx context.Context, a *attrState) (stream.Entry, bool, error) {
	if r.expired {
		return stream.Entry{}, false, errBudget
	}
	select {
	case ev, ok := <-a.events:
		if !ok {
			a.closed = true
			return stream.Entry{}, false, nil
		}
		if ev.err != nil {
			r.degrade(a, ev.err)
			a.closed = true
			return stream.Entry{}, false, nil
		}
		r.stats.SortedAccesses++
		metrics.SortedAccessesTotal.WithLabelValues(a.name).Inc()
		a.cache.Put(ev.entry.ID, ev.entry.Value)
		return ev.entry, true, nil
	case <-r.timer.C:
		r.expired = true
		return stream.Entry{}, false, errBudget
	case <-ctx.Done():
		return stream.Entry{}, false, ctx.Err()
	}
}

// lookahead reads a's stream ahead until its scale is fixed or the stream
// ends. The entries stay queued for normal consumption.
func (r *run) lookahead(ctx context.Context, a *attrState) error {
	for !a.scorer.Scaling().Fixed() && !a.closed {
		e, ok, err := r.receive(ctx, a)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		a.pending = append(a.pending, e)
		a.scorer.Observe(e.Distance)
	}
	return nil
}

func (r *run) degrade(a *attrState, err error) {
	if a.degraded {
		return
	}
	a.degraded = true
	r.degraded = append(r.degraded, result.Degradation{Attribute: a.name, Reason: err.Error()})
	metrics.DegradedAttributesTotal.WithLabelValues(a.name).Inc()
	r.log.Warn("Attribute degraded", zap.String("attribute", a.name), zap.Error(err))
}

type valueResult struct {
	v     attribute.Value
	found bool
	err   error
}
