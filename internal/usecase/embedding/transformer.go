// Package embedding maps keyword sets to fixed-length vectors through a
// token vocabulary.
package embedding

import (
	"context"
	"math"
	"strings"
	"sync/atomic"

	"github.com/kailas-cloud/simsearch/internal/metrics"
)

// DefaultDelimiter joins the words of a compound token, e.g. "new_york".
const DefaultDelimiter = "_"

// Transformer embeds token sets as the mean of their word vectors.
// It is safe for concurrent use.
type Transformer struct {
	vocab     Vocabulary
	dim       int
	delimiter string
	missing   atomic.Int64
}

// NewTransformer creates a transformer producing dim-length vectors.
// An empty delimiter selects DefaultDelimiter.
func NewTransformer(vocab Vocabulary, dim int, delimiter string) *Transformer {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return &Transformer{vocab: vocab, dim: dim, delimiter: delimiter}
}

// Dim returns the vector length.
func (t *Transformer) Dim() int { return t.dim }

// Missing returns how many tokens could not be resolved so far.
func (t *Transformer) Missing() int64 { return t.missing.Load() }

// Embed returns the element-wise mean of the resolved token vectors.
// Tokens are lower-cased before lookup; a compound token is split on the
// delimiter and its parts averaged into one component. Unresolved tokens are
// skipped and counted. When nothing resolves the result is NaN in every dimension.
func (t *Transformer) Embed(ctx context.Context, tokens []string) []float64 {
	sum := make([]float64, t.dim)
	n := 0
	for _, tok := range tokens {
		if v, ok := t.component(ctx, tok); ok {
			for i := range sum {
				sum[i] += v[i]
			}
			n++
		}
	}
	if n == 0 {
		for i := range sum {
			sum[i] = math.NaN()
		}
		return sum
	}
	for i := range sum {
		sum[i] /= float64(n)
	}
	return sum
}

func (t *Transformer) component(ctx context.Context, tok string) ([]float64, bool) {
	if strings.Contains(tok, t.delimiter) {
		parts := strings.Split(tok, t.delimiter)
		words := parts[:0]
		for _, p := range parts {
			if p != "" {
				words = append(words, p)
			}
		}
		if len(words) == 0 {
			return nil, false
		}
		v := t.Embed(ctx, words)
		if len(v) == 0 || math.IsNaN(v[0]) {
			return nil, false
		}
		return v, true
	}

	v, ok := t.vocab.Lookup(ctx, strings.ToLower(tok))
	if !ok || len(v) != t.dim {
		t.missing.Add(1)
		metrics.EmbeddingMissingTokensTotal.Inc()
		return nil, false
	}
	return v, true
}
