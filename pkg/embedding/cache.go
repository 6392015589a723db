package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"pai-policy-qa/pkg/log"
)

// redisStore 是缓存用到的 Redis 命令子集，*redis.Client 满足该接口。
type redisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type cachedClient struct {
	next   Client
	rdb    redisStore
	prefix string
	ttl    time.Duration
}

// NewCachedClient 用 Redis 缓存包装一个向量化客户端。缓存读写失败只记日志，不影响结果。
func NewCachedClient(next Client, rdb redisStore, prefix string, ttl time.Duration) Client {
	return &cachedClient{next: next, rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *cachedClient) Name() string {
	return c.next.Name()
}

func (c *cachedClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return singleFromBatch(ctx, c, text)
}

func (c *cachedClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if vec, ok := c.get(ctx, t); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.next.CreateEmbeddings(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.set(ctx, texts[i], vecs[j])
	}
	log.Debugf("[EmbeddingCache] 命中 %d, 未命中 %d", len(texts)-len(missTexts), len(missTexts))
	return out, nil
}

func (c *cachedClient) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + c.next.Name() + ":" + hex.EncodeToString(sum[:])
}

func (c *cachedClient) get(ctx context.Context, text string) ([]float32, bool) {
	raw, err := c.rdb.Get(ctx, c.key(text)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("[EmbeddingCache] 读取缓存失败: %v", err)
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		log.Warnf("[EmbeddingCache] 缓存内容无法解析: %v", err)
		return nil, false
	}
	return vec, true
}

func (c *cachedClient) set(ctx context.Context, text string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(text), raw, c.ttl).Err(); err != nil {
		log.Warnf("[EmbeddingCache] 写入缓存失败: %v", err)
	}
}
