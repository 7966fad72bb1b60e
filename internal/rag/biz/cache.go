package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/agentic-rag/internal/rag/metrics"
	"github.com/kart-io/agentic-rag/pkg/cache"
	"github.com/kart-io/agentic-rag/pkg/utils/json"
)

// CacheBackend 是检索缓存的存储后端。
type CacheBackend interface {
	// Get 返回键对应的值，键不存在时 ok 为 false。
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	// Keys 返回所有带指定前缀的键。
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// RedisBackend 基于 Redis 的缓存后端。
type RedisBackend struct {
	client *goredis.Client
}

// NewRedisBackend 创建 Redis 缓存后端。
func NewRedisBackend(client *goredis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Get implements CacheBackend.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set implements CacheBackend.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

// Del implements CacheBackend.
func (b *RedisBackend) Del(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

// Keys implements CacheBackend，使用 SCAN 遍历。
func (b *RedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan cache keys: %w", err)
	}
	return keys, nil
}

// MemoryBackend 进程内缓存后端，重启后失效。
type MemoryBackend struct {
	cache *cache.MemoryCache[string, []byte]
}

// NewMemoryBackend 创建进程内缓存后端，maxEntries <= 0 表示不限条数。
func NewMemoryBackend(maxEntries int) *MemoryBackend {
	return &MemoryBackend{cache: cache.NewMemoryCache[string, []byte](maxEntries)}
}

// Get implements CacheBackend.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.cache.Get(key)
	return v, ok, nil
}

// Set implements CacheBackend.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.cache.Set(key, value, ttl)
	return nil
}

// Del implements CacheBackend.
func (b *MemoryBackend) Del(_ context.Context, key string) error {
	b.cache.Del(key)
	return nil
}

// Keys implements CacheBackend.
func (b *MemoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for _, k := range b.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// RetrievalCacheConfig 检索缓存配置。
type RetrievalCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// CachedRetriever 缓存检索结果，空结果同样缓存。
// 后端故障只记录日志，请求透传给下游检索器。
type CachedRetriever struct {
	next    Retriever
	backend CacheBackend
	config  *RetrievalCacheConfig
	metrics *metrics.AgentMetrics
}

// NewCachedRetriever 创建带缓存的检索器。
func NewCachedRetriever(next Retriever, backend CacheBackend, config *RetrievalCacheConfig, m *metrics.AgentMetrics) *CachedRetriever {
	if config == nil {
		config = &RetrievalCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "agentic-rag:retrieval:",
		}
	}
	return &CachedRetriever{
		next:    next,
		backend: backend,
		config:  config,
		metrics: m,
	}
}

// generateCacheKey 基于查询和 k 生成缓存键（使用 SHA256 哈希）。
func (c *CachedRetriever) generateCacheKey(query string, k int) string {
	hash := sha256.Sum256([]byte(query + "|" + strconv.Itoa(k)))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

func (c *CachedRetriever) enabled() bool {
	return c.config.Enabled && c.backend != nil
}

// Search implements Retriever.
func (c *CachedRetriever) Search(ctx context.Context, query string, k int) (*RetrievalResult, error) {
	if !c.enabled() {
		return c.next.Search(ctx, query, k)
	}

	cacheKey := c.generateCacheKey(query, k)
	if cached, ok := c.get(ctx, cacheKey); ok {
		c.metrics.RecordCache(true)
		logger.Debugw("retrieval cache hit", "query", query, "key", cacheKey)
		return cached, nil
	}
	c.metrics.RecordCache(false)

	result, err := c.next.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	c.set(ctx, cacheKey, result)
	return result, nil
}

func (c *CachedRetriever) get(ctx context.Context, cacheKey string) (*RetrievalResult, bool) {
	data, ok, err := c.backend.Get(ctx, cacheKey)
	if err != nil {
		logger.Warnw("failed to get from cache", "error", err.Error(), "key", cacheKey)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var result RetrievalResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("failed to unmarshal cached result", "error", err.Error(), "key", cacheKey)
		// 删除损坏的缓存
		_ = c.backend.Del(ctx, cacheKey)
		return nil, false
	}
	return &result, true
}

func (c *CachedRetriever) set(ctx context.Context, cacheKey string, result *RetrievalResult) {
	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("failed to marshal result for caching", "error", err.Error())
		return
	}
	if err := c.backend.Set(ctx, cacheKey, data, c.config.TTL); err != nil {
		logger.Warnw("failed to set cache", "error", err.Error(), "key", cacheKey)
	}
}

// Clear 清除所有检索缓存。
func (c *CachedRetriever) Clear(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}

	keys, err := c.backend.Keys(ctx, c.config.KeyPrefix)
	if err != nil {
		return err
	}
	deletedCount := 0
	for _, key := range keys {
		if err := c.backend.Del(ctx, key); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", key)
		} else {
			deletedCount++
		}
	}

	logger.Infow("cleared retrieval cache", "deleted_count", deletedCount)
	return nil
}

// CacheStats 缓存统计信息。
type CacheStats struct {
	Enabled   bool   `json:"enabled"`
	KeyCount  int    `json:"key_count"`
	TTL       string `json:"ttl,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}

// GetStats 获取缓存统计信息。
func (c *CachedRetriever) GetStats(ctx context.Context) (*CacheStats, error) {
	if !c.enabled() {
		return &CacheStats{Enabled: false}, nil
	}

	keys, err := c.backend.Keys(ctx, c.config.KeyPrefix)
	if err != nil {
		return nil, err
	}

	return &CacheStats{
		Enabled:   true,
		KeyCount:  len(keys),
		TTL:       c.config.TTL.String(),
		KeyPrefix: c.config.KeyPrefix,
	}, nil
}
