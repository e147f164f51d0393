package simsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics are registered on the caller's registry, under simsearch_sdk_*.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	searches   *prometheus.CounterVec
	rounds     *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simsearch",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK calls by operation and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "simsearch",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK call duration in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"operation"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simsearch",
			Subsystem: "sdk",
			Name:      "searches_total",
			Help:      "Completed searches by mode and whether every hit was proven.",
		}, []string{"mode", "result"}), // "exact" / "approximate" / "degraded"
		rounds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "simsearch",
			Subsystem: "sdk",
			Name:      "search_rounds",
			Help:      "Sorted-access rounds per search.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"mode"}),
	}
	for _, c := range []func() error{
		func() error { return registerOrReuse(reg, &m.operations) },
		func() error { return registerOrReuse(reg, &m.duration) },
		func() error { return registerOrReuse(reg, &m.searches) },
		func() error { return registerOrReuse(reg, &m.rounds) },
	} {
		if err := c(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// registerOrReuse registers a collector, or adopts the one already registered
// under the same name so several clients can share a registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("simsearch: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("simsearch: metric already registered as %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and counts SDK calls. Both sinks are optional.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func opStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	status := opStatus(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}
	switch status {
	case "ok":
		o.logger.Debug("operation completed", "op", op, "duration", dur)
	case "canceled":
		o.logger.Debug("operation canceled", "op", op, "duration", dur, "error", err)
	default:
		o.logger.Warn("operation failed", "op", op, "duration", dur, "error", err)
	}
}

// observeSearch records the outcome of a completed search.
func (o *observer) observeSearch(m Mode, res *Result) {
	if o == nil || res == nil {
		return
	}
	outcome := "exact"
	switch {
	case len(res.Degraded) > 0:
		outcome = "degraded"
	case !res.Exact:
		outcome = "approximate"
	}

	if o.metrics != nil {
		o.metrics.searches.WithLabelValues(string(m), outcome).Inc()
		o.metrics.rounds.WithLabelValues(string(m)).Observe(float64(res.Stats.Rounds))
	}
	if o.logger != nil && outcome != "exact" {
		attrs := make([]string, len(res.Degraded))
		for i, d := range res.Degraded {
			attrs[i] = d.Attribute
		}
		o.logger.Info("search not exact",
			"mode", m, "outcome", outcome, "hits", len(res.Hits),
			"rounds", res.Stats.Rounds, "degraded", attrs)
	}
}
