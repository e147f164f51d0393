package health

import (
	"context"

	"github.com/kailas-cloud/simsearch/internal/usecase/catalog"
)

// Catalog exposes the sources and mounted attributes to check.
type Catalog interface {
	// Ping returns one entry per source, nil when healthy.
	Ping(ctx context.Context) map[string]error
	List() []catalog.Info
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
