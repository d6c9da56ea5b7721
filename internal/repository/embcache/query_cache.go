// Package embcache memoises question embeddings in Valkey. Visitors of one
// tenant ask the same few questions over and over ("tem piscina?", "qual o
// mais barato?"), so a hit skips the provider round trip and its tokens.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/realtorbot/internal/db"
	"github.com/kailas-cloud/realtorbot/internal/domain"
)

// Values of the "result" label on the cache counter.
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultCorrupt = "corrupt"
)

// Keys look like realtorbot:emb_cache:<model>:<sha256 of the question>.
// The model stays readable so one model's vectors can be dropped with a
// SCAN/UNLINK on its prefix after a model change.
var cacheNamespace = domain.KeyPrefix + "emb_cache:"

// kv is the consumer interface for the cache (ISP).
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// QueryCache is a domain.Embedder decorator. Entries are shared by all
// tenants: the vector depends only on the model and the question.
type QueryCache struct {
	inner   domain.Embedder
	kv      kv
	prefix  string
	ttl     time.Duration
	results *prometheus.CounterVec
	logger  *zap.Logger
}

// New creates a QueryCache for model. A zero ttl keeps entries forever.
// results counts lookups by a "result" label and may be nil.
func New(
	inner domain.Embedder,
	s kv,
	model string,
	ttl time.Duration,
	results *prometheus.CounterVec,
	logger *zap.Logger,
) *QueryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryCache{
		inner:   inner,
		kv:      s,
		prefix:  cacheNamespace + model + ":",
		ttl:     ttl,
		results: results,
		logger:  logger,
	}
}

// Embed serves the question's vector from the cache or the provider.
// A hit reports zero tokens since nothing was billed.
func (c *QueryCache) Embed(ctx context.Context, question string) (domain.EmbeddingResult, error) {
	key := c.key(question)

	vec, res := c.lookup(ctx, key)
	c.count(res)
	if res == resultHit {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	result, err := c.inner.Embed(ctx, question)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed question: %w", err)
	}

	// a vector the pipeline rejects must not outlive this turn
	if domain.ValidateVector(result.Embedding) == nil {
		c.store(ctx, key, result.Embedding)
	}
	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (c *QueryCache) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// key hashes the question with its whitespace collapsed, so "T2  em Lisboa "
// and "T2 em Lisboa" share an entry.
func (c *QueryCache) key(question string) string {
	h := sha256.Sum256([]byte(strings.Join(strings.Fields(question), " ")))
	return c.prefix + hex.EncodeToString(h[:])
}

func (c *QueryCache) count(result string) {
	if c.results != nil {
		c.results.WithLabelValues(result).Inc()
	}
}

func (c *QueryCache) lookup(ctx context.Context, key string) ([]float32, string) {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, resultMiss
	}
	if len(data) == 0 {
		return nil, resultMiss
	}

	vec, err := decodeVector(data)
	if err == nil {
		err = domain.ValidateVector(vec)
	}
	if err != nil {
		c.logger.Warn("Discarding corrupt cached embedding", zap.String("key", key), zap.Error(err))
		return nil, resultCorrupt
	}
	return vec, resultHit
}

func (c *QueryCache) store(ctx context.Context, key string, vec []float32) {
	data := encodeVector(vec)
	var err error
	if c.ttl > 0 {
		err = c.kv.SetWithTTL(ctx, key, data, c.ttl)
	} else {
		err = c.kv.Set(ctx, key, data)
	}
	if err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// encodeVector uses the FLOAT32 little-endian layout of the search index blobs.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("cached embedding is %d bytes, not a float32 multiple", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
