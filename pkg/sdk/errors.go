package simsearch

import "github.com/kailas-cloud/simsearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound          = domain.ErrNotFound
	ErrAlreadyExists     = domain.ErrAlreadyExists
	ErrNoAttributes      = domain.ErrNoAttributes
	ErrUnknownAttribute  = domain.ErrUnknownAttribute
	ErrDimensionMismatch = domain.ErrDimensionMismatch
	ErrInvalidWeight     = domain.ErrInvalidWeight
	ErrInvalidMode       = domain.ErrInvalidMode
	ErrInvalidTopK       = domain.ErrInvalidTopK
	ErrInvalidQueryValue = domain.ErrInvalidQueryValue
)
