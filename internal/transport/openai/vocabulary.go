// Package openai resolves vocabulary tokens through an OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/metrics"
)

// Vocabulary fetches one vector per token from an OpenAI-compatible provider (e.g. Nebius).
type Vocabulary struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	logger     *zap.Logger
}

// Config holds the provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
	Logger     *zap.Logger
}

// NewVocabulary creates an OpenAI-compatible vocabulary.
func NewVocabulary(cfg *Config) *Vocabulary {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &Vocabulary{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		logger:     cfg.Logger,
	}
}

// Vector returns the embedding of a single token.
func (v *Vocabulary) Vector(ctx context.Context, token string) ([]float64, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{token},
		Model:          v.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           v.user,
	}
	if v.dimensions > 0 {
		req.Dimensions = v.dimensions
	}

	start := time.Now()
	resp, err := v.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.VocabularyRequestsTotal.WithLabelValues(v.provider, string(v.model), "error").Inc()
		return nil, parseAPIError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.VocabularyRequestsTotal.WithLabelValues(v.provider, string(v.model), "empty").Inc()
		return nil, fmt.Errorf("token %q: %w", token, domain.ErrNotFound)
	}

	metrics.VocabularyRequestsTotal.WithLabelValues(v.provider, string(v.model), "success").Inc()
	metrics.VocabularyRequestDuration.WithLabelValues(v.provider, string(v.model)).Observe(duration.Seconds())

	src := resp.Data[0].Embedding
	out := make([]float64, len(src))
	for i, f := range src {
		out[i] = float64(f)
	}
	return out, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (v *Vocabulary) HealthCheck(ctx context.Context) error {
	if _, err := v.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors wrap domain.ErrUnavailable.
func parseAPIError(err error) error {
	wrap := domain.ErrUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("vocabulary API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("vocabulary API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("vocabulary API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("vocabulary request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
