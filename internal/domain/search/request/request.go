package request

import (
	"fmt"

	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/domain/search/mode"
)

// Search parameter limits.
const (
	DefaultTopK = 10
	MaxTopK     = 1000
)

// Request is a validated multi-attribute search.
type Request struct {
	attributes []attribute.Query
	topK       int
	mode       mode.Mode
}

// New validates and normalizes search parameters.
// Defaults: mode=threshold, topK=10. topK above MaxTopK is rejected.
func New(attrs []attribute.Query, topK int, m mode.Mode) (Request, error) {
	if len(attrs) == 0 {
		return Request{}, domain.ErrNoAttributes
	}
	if m == "" {
		m = mode.Threshold
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("%w: %q", domain.ErrInvalidMode, m)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 0 || topK > MaxTopK {
		return Request{}, fmt.Errorf("%w: %d (max %d)", domain.ErrInvalidTopK, topK, MaxTopK)
	}

	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		if err := a.Validate(); err != nil {
			return Request{}, err
		}
		if _, dup := seen[a.Name]; dup {
			return Request{}, domain.NewAttributeError(a.Name, fmt.Errorf("queried twice: %w", domain.ErrAlreadyExists))
		}
		seen[a.Name] = struct{}{}
	}

	out := make([]attribute.Query, len(attrs))
	copy(out, attrs)
	return Request{attributes: out, topK: topK, mode: m}, nil
}

// Attributes returns the attribute queries in request order.
func (r *Request) Attributes() []attribute.Query { return r.attributes }

// TopK returns the number of results to rank.
func (r *Request) TopK() int { return r.topK }

// Mode returns the ranking algorithm.
func (r *Request) Mode() mode.Mode { return r.mode }
