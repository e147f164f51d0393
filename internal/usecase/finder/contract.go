package finder

import (
	"context"

	"github.com/kailas-cloud/simsearch/internal/db"
)

// Source reads a single entity's value.
type Source interface {
	FindSingletonValue(ctx context.Context, q *db.Query) (string, error)
}
