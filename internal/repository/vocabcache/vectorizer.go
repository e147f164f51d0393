// Package vocabcache caches remote token vectors in a key-value store.
package vocabcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simsearch/internal/db"
	"github.com/kailas-cloud/simsearch/internal/domain"
)

const cacheKeyPrefix = "simsearch:vocab:"

// Vectorizer is the remote token lookup being cached.
type Vectorizer interface {
	Vector(ctx context.Context, token string) ([]float64, error)
}

// store is the consumer interface for the vector cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedVectorizer caches token vectors, including tokens the provider does not know.
type CachedVectorizer struct {
	inner      Vectorizer
	store      store
	namespace  string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. namespace separates models sharing one store.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner Vectorizer,
	s store,
	namespace string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedVectorizer {
	return &CachedVectorizer{
		inner:      inner,
		store:      s,
		namespace:  namespace,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Vector returns a cached vector or asks the inner vectorizer.
// A cached empty entry records a token the provider does not know.
func (c *CachedVectorizer) Vector(ctx context.Context, token string) ([]float64, error) {
	key := c.cacheKey(token)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		if len(vec) == 0 {
			return nil, fmt.Errorf("token %q: %w", token, domain.ErrNotFound)
		}
		return vec, nil
	}

	c.incCache("miss")

	vec, err := c.inner.Vector(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.putToCache(ctx, key, nil)
		}
		return nil, fmt.Errorf("vectorize token: %w", err)
	}

	c.putToCache(ctx, key, vec)
	return vec, nil
}

func (c *CachedVectorizer) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedVectorizer) cacheKey(token string) string {
	h := sha256.Sum256([]byte(token))
	return cacheKeyPrefix + c.namespace + ":" + hex.EncodeToString(h[:])
}

func (c *CachedVectorizer) getFromCache(ctx context.Context, key string) ([]float64, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached vector", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached vector", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedVectorizer) putToCache(ctx context.Context, key string, vec []float64) {
	if err := c.store.SetWithTTL(ctx, key, vectorToBytes(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache vector", zap.String("key", key), zap.Error(err))
	}
}

func vectorToBytes(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("invalid vector cache data: len=%d (not multiple of 8)", len(data))
	}
	vec := make([]float64, len(data)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vec, nil
}
