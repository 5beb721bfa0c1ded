package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

const (
	DefaultCacheSize = 1000
	redisKeyPrefix   = "lessonbank:embed:"
)

// CachedEmbedder puts an in-process LRU in front of an Embedder, with an optional
// shared Redis tier behind it. Cache failures fall through to the provider.
type CachedEmbedder struct {
	inner Embedder
	local *lru.Cache[string, []float32]
	rdb   redis.UniversalClient
	ttl   time.Duration
	log   *logger.Logger
}

type CacheOptions struct {
	Size     int
	Redis    redis.UniversalClient
	RedisTTL time.Duration
}

func NewCachedEmbedder(inner Embedder, opts CacheOptions, log *logger.Logger) (*CachedEmbedder, error) {
	if inner == nil {
		return nil, errors.New("fingerprint: nil embedder")
	}
	size := opts.Size
	if size <= 0 {
		size = DefaultCacheSize
	}
	local, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CachedEmbedder{inner: inner, local: local, rdb: opts.Redis, ttl: opts.RedisTTL, log: log}, nil
}

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *CachedEmbedder) Embed(ctx context.Context, text, taskType string) ([]float32, error) {
	key := cacheKey(c.inner.ModelName(), taskType, text)
	if vec, ok := c.local.Get(key); ok {
		return vec, nil
	}
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
		if err == nil {
			if vec, ok := decodeVector(raw); ok {
				c.local.Add(key, vec)
				return vec, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.log.Debug("embedding cache read failed", "error", err)
		}
	}

	vec, err := c.inner.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	c.local.Add(key, vec)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, redisKeyPrefix+key, encodeVector(vec), c.ttl).Err(); err != nil {
			c.log.Debug("embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}

func (c *CachedEmbedder) Len() int { return c.local.Len() }

func cacheKey(model, taskType, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(taskType))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func encodeVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeVector(raw []byte) ([]float32, bool) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, false
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, true
}
