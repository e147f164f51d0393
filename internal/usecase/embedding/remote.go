package embedding

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simsearch/internal/domain"
)

// Vectorizer fetches a token vector from a remote provider.
// A token the provider does not know yields domain.ErrNotFound.
type Vectorizer interface {
	Vector(ctx context.Context, token string) ([]float64, error)
}

// RemoteVocabulary adapts a Vectorizer to the Vocabulary contract. Provider
// failures never reach the caller: they are logged and the token counts as missing.
// Transport metrics (requests, duration) are recorded in transport/openai.
type RemoteVocabulary struct {
	inner    Vectorizer
	provider string
	model    string
	dim      int
	logger   *zap.Logger
}

// NewRemoteVocabulary wraps a vectorizer. Vectors whose length differs from dim are dropped.
func NewRemoteVocabulary(inner Vectorizer, provider, model string, dim int, logger *zap.Logger) *RemoteVocabulary {
	return &RemoteVocabulary{
		inner:    inner,
		provider: provider,
		model:    model,
		dim:      dim,
		logger:   logger,
	}
}

// Lookup implements Vocabulary.
func (v *RemoteVocabulary) Lookup(ctx context.Context, token string) ([]float64, bool) {
	start := time.Now()
	vec, err := v.inner.Vector(ctx, token)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && ctx.Err() == nil {
			v.logger.Warn("Vocabulary lookup failed",
				zap.String("provider", v.provider),
				zap.String("model", v.model),
				zap.String("token", token),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
		return nil, false
	}
	if len(vec) != v.dim {
		v.logger.Warn("Vocabulary returned wrong dimension",
			zap.String("provider", v.provider),
			zap.String("token", token),
			zap.Int("want", v.dim),
			zap.Int("got", len(vec)),
		)
		return nil, false
	}

	v.logger.Debug("Vocabulary lookup completed",
		zap.String("provider", v.provider),
		zap.String("token", token),
		zap.Duration("duration", time.Since(start)),
	)
	return vec, true
}
