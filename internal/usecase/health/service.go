// Package health reports whether searches can reach their data.
package health

import (
	"context"
	"slices"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates every check passed.
	Healthy Status = "ok"
	// Degraded indicates some searches will report degraded attributes.
	Degraded Status = "degraded"
	// Unhealthy indicates every check failed.
	Unhealthy Status = "error"
)

// CheckResult is one component's outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultTimeout bounds one Check when New is given no timeout.
const DefaultTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	// Errors holds the failure message per failed check.
	Errors map[string]string
	// Affected lists in-situ attributes whose source failed, sorted.
	// Ingested attributes keep working without their source.
	Affected []string
}

// Service coordinates health checks.
type Service struct {
	catalog   Catalog
	embedding EmbeddingChecker
	timeout   time.Duration
}

// New creates a Service. embedding can be nil; timeout <= 0 selects DefaultTimeout.
func New(c Catalog, embedding EmbeddingChecker, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{catalog: c, embedding: embedding, timeout: timeout}
}

// Check pings every source and the embedding provider.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r := Report{Checks: make(map[string]CheckResult), Errors: make(map[string]string)}
	record := func(name string, err error) {
		if err == nil {
			r.Checks[name] = CheckOK
			return
		}
		r.Checks[name] = CheckError
		r.Errors[name] = err.Error()
	}

	down := make(map[string]bool)
	for name, err := range s.catalog.Ping(ctx) {
		record("source:"+name, err)
		down[name] = err != nil
	}
	if s.embedding != nil {
		record("embedding", s.embedding.HealthCheck(ctx))
	}

	for _, a := range s.catalog.List() {
		if down[a.Source] && !a.Ingested {
			r.Affected = append(r.Affected, a.Name)
		}
	}
	slices.Sort(r.Affected)

	r.Status = aggregate(len(r.Checks), len(r.Errors))
	return r
}

func aggregate(total, failed int) Status {
	switch {
	case failed == 0:
		return Healthy
	case failed == total:
		return Unhealthy
	default:
		return Degraded
	}
}
