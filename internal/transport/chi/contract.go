package chi

import (
	"context"

	"github.com/kailas-cloud/simsearch/internal/domain/search/request"
	"github.com/kailas-cloud/simsearch/internal/domain/search/result"
	"github.com/kailas-cloud/simsearch/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/simsearch/internal/usecase/health"
)

// Searcher ranks a validated request.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (*result.Response, error)
}

// Catalog manages mounted attributes and the pivot space.
type Catalog interface {
	Mount(ctx context.Context, spec catalog.Spec) (catalog.Info, error)
	List() []catalog.Info
	Remove(name string) error
	BuildPivot(ctx context.Context, names []string) (*catalog.PivotSpace, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
